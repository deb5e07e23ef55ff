package main

import (
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"intercom/pkg/app"
	"intercom/pkg/app/config"
	"intercom/pkg/packet"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"
)

const defaultConfigFile = "/opt/womat/config/" + app.MODULE + ".yaml"

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()

	cliApp := &cli.App{
		Name:    app.MODULE,
		Usage:   "point to point intercom over UDP",
		Version: app.VERSION,
		Description: "Calls the peer intercom when the call switch is pressed and rings when the peer calls." +
			"\n Voice is sent as raw pcm over UDP, the call switch is read from a gpio line of the raspberry pi.",
		UsageText: "intercom [--config <file>] [--log standard|debug|trace] [--peer <host[:port]>]" +
			"\n   intercom dump --pcap <file> [--port <port>]" +
			"\n\nEXAMPLE:" +
			"\n\tstart the intercom and call the door station" +
			"\n\t\tintercom --config /opt/womat/config/intercom.yaml --peer door.local",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: defaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
			&cli.StringFlag{Name: "peer", Aliases: []string{"p"}, Destination: &cfg.Flag.Peer, Usage: "`HOST[:PORT]` of the peer intercom, overrides the config file"},
		},
		Commands: []*cli.Command{
			{
				Name:  "dump",
				Usage: "decode the intercom datagrams of a pcap file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "pcap", Required: true, Usage: "read packets from `FILE`"},
					&cli.IntFlag{Name: "port", Value: 5060, Usage: "UDP `PORT` of the intercom"},
				},
				Action: dump,
			},
		},
		Action: func(ctx *cli.Context) error {
			return run(cfg)
		},
	}

	// we expect to have more command line flags in the future - sort them
	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	err := cliApp.Run(os.Args)
	if err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
}

// run starts the intercom and waits for an exit signal or a fatal error of the app.
func run(cfg *config.Config) error {
	if err := cfg.LoadConfig(); err != nil {
		return err
	}

	debug.SetDebug(cfg.Debug.File, cfg.Debug.Flag)
	defer func() {
		debug.InfoLog.Printf("closing debug file %s", cfg.Debug.FileString)
		_ = cfg.Debug.File.Close()
	}()

	a, err := app.New(cfg)
	defer func() {
		debug.InfoLog.Printf("closing app %s", app.Version())
		_ = a.Close()
	}()

	if err != nil {
		return err
	}

	debug.InfoLog.Printf("starting app %s", app.Version())
	if err = a.Run(); err != nil {
		return err
	}

	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
		return nil
	case err = <-a.Failed():
		return err
	}
}

func dump(ctx *cli.Context) error {
	f, err := os.Open(ctx.String("pcap"))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return packet.Dump(f, ctx.Int("port"), func(fr packet.Frame) {
		fmt.Println(fr)
	})
}
