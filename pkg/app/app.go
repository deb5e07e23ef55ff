package app

import (
	"fmt"
	"net/url"
	"sync"

	"intercom/pkg/app/config"
	"intercom/pkg/audio"
	"intercom/pkg/call"
	"intercom/pkg/control"
	"intercom/pkg/history"
	"intercom/pkg/mqtt"
	"intercom/pkg/raspberry"
	"intercom/pkg/transport"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Url parameter
	// and makes it easier to get params out of e.g.
	// url: https://0.0.0.0:7844/?minTls=1.2&bodyLimit=50MB
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// sw is the call switch
	sw raspberry.Switch

	// rx receives the datagrams of the peer, tx sends to the peer.
	// captureTx is the duplicate of tx used by the capture go function.
	rx        *transport.Receiver
	tx        *transport.Sender
	captureTx *transport.Sender

	format  audio.Format
	headset *audio.Ringer
	speaker *audio.Ringer

	// call is the call state, loop is its only writer
	call *call.Call
	loop *control.Loop

	history  *history.Store
	recorder *history.Recorder

	// quit stops the control loop
	quit chan struct{}
	// failed signals a fatal error of a go function, e.g. the audio capture
	failed chan error

	// running is set by Run, the web server and the mqtt service are started
	running   bool
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New checks the configuration, binds the sockets, opens the call switch and the call history
// and wires the control loop.
// On error the returned App holds the resources opened so far, Close releases them.
func New(config *config.Config) (*App, error) {
	app := &App{
		config: config,
		web:    fiber.New(fiber.Config{DisableStartupMessage: true}),
		mqtt:   mqtt.New(),
		call:   call.New(),
		format: audio.Format{Rate: config.Audio.Rate, Channels: config.Audio.Channels},
		quit:   make(chan struct{}),
		failed: make(chan error, 1),
	}

	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return app, err
	}
	app.urlParsed = u

	if app.rx, err = transport.NewReceiver(config.Port, config.Ring.PollTimeout); err != nil {
		return app, err
	}

	if app.tx, err = transport.NewSender(config.PeerAddress()); err != nil {
		return app, err
	}

	if app.captureTx, err = app.tx.Duplicate(); err != nil {
		return app, err
	}

	if app.sw, err = raspberry.Open(raspberry.Options{
		Driver:    config.Gpio.Driver,
		Chip:      config.Gpio.Chip,
		Pin:       config.Gpio.Pin,
		Bias:      config.Gpio.Bias,
		ActiveLow: config.Gpio.ActiveLow,
	}); err != nil {
		return app, fmt.Errorf("can't open call switch: %w", err)
	}

	if app.history, err = history.Open(config.History.Path, config.History.Limit); err != nil {
		return app, err
	}
	app.recorder = history.NewRecorder(app.history, app.call)

	tone := audio.RingTone(app.format)
	app.headset = audio.NewRinger(audio.NewCommandPlayer("headset", config.Audio.Headset), tone)
	app.speaker = audio.NewRinger(audio.NewCommandPlayer("speaker", config.Audio.Speaker), tone)

	app.loop = control.New(app.call, app.rx, app.tx, app.sw, app.headset, app.speaker, control.Options{
		ToneInterval:       config.Ring.Tone,
		RetransmitInterval: config.Ring.Retransmit,
		Nap:                config.Ring.Nap,
	})
	app.loop.OnChange(app.recorder.Observe)
	app.loop.OnChange(app.mqtt.Observer(config.MQTT.Topic))

	debug.InfoLog.Printf("listening on port %d, peer %v", app.rx.Port(), app.tx.Remote())
	return app, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.mqtt.Connect(app.config.MQTT.Connection, MODULE); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	src, err := audio.OpenCapture(app.config.Audio.Capture)
	if err != nil {
		debug.ErrorLog.Printf("can't open audio capture: %v", err)
		return err
	}

	// initDefaultRoutes should be always called last because it accesses the wired components
	app.initDefaultRoutes()

	app.running = true
	go app.mqtt.Service()
	go app.runWebServer()

	app.speaker.Play(audio.Chirp(app.format))

	app.wg.Add(1)
	go func() {
		defer app.wg.Done()
		app.loop.Run(app.quit)
	}()

	go func() {
		defer func() { _ = src.Close() }()
		app.fail(control.Capture(src, app.call, app.captureTx, app.config.Audio.Chunk))
	}()

	return nil
}

// Failed returns the read only channel of fatal errors.
// Failed is used to terminate the process, e.g. if the audio capture stops. (see cmd/intercom.go)
func (app *App) Failed() <-chan error {
	return app.failed
}

func (app *App) fail(err error) {
	select {
	case app.failed <- err:
	default:
	}
}

// Close stops the control loop and releases all resources.
func (app *App) Close() error {
	app.closeOnce.Do(func() {
		close(app.quit)
		app.wg.Wait()

		if app.running {
			_ = app.web.Shutdown()
		}
		app.mqtt.Disconnect()
		if app.headset != nil {
			app.headset.Stop()
		}
		if app.speaker != nil {
			app.speaker.Stop()
		}
		if app.recorder != nil {
			app.recorder.Close()
		}
		if app.history != nil {
			if err := app.history.Close(); err != nil {
				debug.ErrorLog.Printf("close call history: %v", err)
			}
		}
		if app.sw != nil {
			_ = app.sw.Close()
		}
		if app.captureTx != nil {
			_ = app.captureTx.Close()
		}
		if app.tx != nil {
			_ = app.tx.Close()
		}
		if app.rx != nil {
			_ = app.rx.Close()
		}
	})
	return nil
}
