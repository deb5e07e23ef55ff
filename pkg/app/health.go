package app

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// health is the response of the health web service.
type health struct {
	Module          string
	Version         string
	ProgLang        string
	HostName        string
	Time            string
	Uptime          string
	NumGoroutines   int
	HeapAllocatedMB uint64
	SysMemoryMB     uint64
	State           string
	Peer            string
	LocalPort       int
}

// HandleHealth returns data about the health of the intercom.
// output example:
//  {"Module":"intercom","Version":"1.0.0+20241001","ProgLang":"go1.23.2","HostName":"door",
//   "Time":"2024-10-01T08:00:00+02:00","Uptime":"26h3m0s","NumGoroutines":9,"HeapAllocatedMB":3,
//   "SysMemoryMB":12,"State":"Idle","Peer":"192.168.1.20:5060","LocalPort":5060}
func (app *App) HandleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()
	started := time.Now()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		h := health{
			Module:          MODULE,
			Version:         VERSION,
			ProgLang:        runtime.Version(),
			HostName:        host,
			Time:            time.Now().Format(time.RFC3339),
			Uptime:          time.Since(started).Round(time.Second).String(),
			NumGoroutines:   runtime.NumGoroutine(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			State:           app.call.State().String(),
		}
		if app.tx != nil {
			h.Peer = app.tx.Remote()
		}
		if app.rx != nil {
			h.LocalPort = app.rx.Port()
		}

		ctx.Status(http.StatusOK)
		return ctx.JSON(h)
	}
}
