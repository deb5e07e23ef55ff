package app

import (
	"errors"
	"strconv"

	"intercom/pkg/call"
	"intercom/pkg/control"
	"intercom/pkg/history"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// defaultCalls is the number of calls returned by /calls without limit.
const defaultCalls = 20

// state is the response of the state web service.
type state struct {
	State   call.State      `json:"state"`
	Resets  uint64          `json:"resets"`
	Current *history.Record `json:"current,omitempty"`
	Stats   control.Stats   `json:"stats"`
}

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleState returns the call state, the call in progress and the traffic counters.
func (app *App) HandleState() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.DebugLog.Print("web request state")

		s := state{
			State:  app.call.State(),
			Resets: app.call.Resets(),
			Stats:  app.loop.Stats(),
		}
		if r, ok := app.recorder.Current(); ok {
			s.Current = &r
		}
		return ctx.JSON(s)
	}
}

// HandleCalls returns the last calls, newest first. The query parameter limit defines the number of calls.
func (app *App) HandleCalls() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request calls")

		n, err := strconv.Atoi(ctx.Query("limit", strconv.Itoa(defaultCalls)))
		if err != nil || n < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "invalid limit")
		}

		records, err := app.history.List(n)
		if err != nil {
			debug.ErrorLog.Printf("list calls: %v", err)
			return err
		}
		return ctx.JSON(records)
	}
}

// HandleCall returns the call with the id of the path.
func (app *App) HandleCall() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request call")

		id, err := strconv.ParseUint(ctx.Params("id"), 10, 64)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid call id")
		}

		r, err := app.history.Get(id)
		if errors.Is(err, history.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		if err != nil {
			debug.ErrorLog.Printf("get call %d: %v", id, err)
			return err
		}
		return ctx.JSON(r)
	}
}
