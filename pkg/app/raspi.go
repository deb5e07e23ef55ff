package app

import (
	"intercom/pkg/raspberry"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// HandleSwitch presses or releases the emulated call switch, only for testing without gpio.
//  POST /switch/press
//  POST /switch/release
func (app *App) HandleSwitch() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		e, ok := app.sw.(*raspberry.Emulated)
		if !ok {
			return fiber.NewError(fiber.StatusConflict, "call switch isn't emulated")
		}

		switch a := ctx.Params("action"); a {
		case "press":
			e.Press()
		case "release":
			e.Release()
		default:
			return fiber.NewError(fiber.StatusBadRequest, "unknown action "+a)
		}

		debug.InfoLog.Printf("web request switch %v", ctx.Params("action"))
		return ctx.SendStatus(fiber.StatusNoContent)
	}
}
