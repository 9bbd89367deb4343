package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/aykevl/domo-rpi/cmd/domo-rpi/subcmd"
	"github.com/aykevl/domo-rpi/color"
	"github.com/aykevl/domo-rpi/hardware/peripheral"
	"github.com/aykevl/domo-rpi/helpers/cli"
	"github.com/aykevl/domo-rpi/internal/bridge"
	"github.com/aykevl/domo-rpi/internal/config"
	"github.com/aykevl/domo-rpi/log2"
	"github.com/aykevl/domo-rpi/relay"
	"github.com/c-bata/go-prompt"
	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
)

func main() {
	flagConfig := flag.String("config", "domo.hcl", "")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [-config domo.hcl] [command args...]\n", os.Args[0])
		fmt.Fprintln(flag.CommandLine.Output(), "Without command, run bridge. Commands:")
		fmt.Fprintln(flag.CommandLine.Output(), subcmd.Help(append((&app{}).commands(),
			subcmd.Mod{Name: "console", Usage: "interactive commands"})))
		flag.PrintDefaults()
	}
	flag.Parse()

	log := log2.NewStderr(log2.LDebug)
	if subcmd.SdNotify("start") {
		// we're under systemd, assume systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	errs := &errorCounter{}
	log.SetErrorFunc(errs.observe)

	cfg, err := config.Read(log, config.NewOsFullReader(), *flagConfig)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if err = cfg.ValidatePeripheral(); err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	clientLog := log.Clone(log2.LInfo)
	if cfg.Peripheral.LogDebug {
		clientLog.SetLevel(log2.LDebug)
	}
	clientLog.SetErrorFunc(errs.observe)
	client, err := peripheral.NewClient(cfg.PeripheralConfig(), clientLog)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	defer client.Close()

	ctx := context.Background()
	args := flag.Args()
	switch {
	case len(args) == 0:
		err = runBridge(ctx, log, errs, cfg, client)
	case args[0] == "console":
		a := &app{log: log, bus: client, out: os.Stdout, calibration: cfg.Calibration()}
		runConsole(ctx, a, client)
	default:
		a := &app{log: log, bus: client, out: os.Stdout, calibration: cfg.Calibration()}
		err = a.exec(ctx, args)
	}
	if err != nil {
		_ = client.Close()
		log.Fatal(errors.ErrorStack(err))
	}
}

func runBridge(ctx context.Context, log *log2.Log, errs *errorCounter, cfg *config.Config, client *peripheral.Client) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	var b *bridge.Bridge
	rc := cfg.RelayConfig()
	rc.OnColor = func(c color.Color) { b.OnColor(c) }
	rc.OnState = func(s relay.State) { log.Infof("relay state=%s", s) }
	relayLog := log.Clone(log2.LInfo)
	if cfg.Relay.LogDebug {
		relayLog.SetLevel(log2.LDebug)
	}
	relayLog.SetErrorFunc(errs.observe)
	r, err := relay.New(rc, relayLog)
	if err != nil {
		return err
	}
	defer r.Close()

	b = bridge.New(bridge.Config{
		SensorName:  cfg.SensorName(),
		Interval:    cfg.SensorInterval(),
		ColorPoll:   cfg.ColorPoll(),
		Calibration: cfg.Calibration(),
	}, client, r, log)
	if err = b.Init(ctx); err != nil {
		return err
	}
	r.Start()
	b.Start()
	subcmd.SdNotify(daemon.SdNotifyReady)
	log.Infof("running name=%s serial=%s relay=%s", cfg.Name, cfg.Serial, rc.URL)

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigch
	log.Infof("signal=%v, stopping", sig)
	subcmd.SdNotify(daemon.SdNotifyStopping)
	b.Stop()
	b.Wait()
	log.Infof("stopped errors=%d peripheral=%+v relay=%+v", errs.count(), client.Stat(), r.Stat())
	return nil
}

// errorCounter observes every error logged by any component.
type errorCounter struct{ n uint32 }

func (self *errorCounter) observe(error) { atomic.AddUint32(&self.n, 1) }
func (self *errorCounter) count() uint32  { return atomic.LoadUint32(&self.n) }

func runConsole(ctx context.Context, a *app, client *peripheral.Client) {
	suggests := make([]prompt.Suggest, 0, 16)
	for _, m := range a.commands() {
		suggests = append(suggests, prompt.Suggest{Text: m.Name, Description: m.Usage})
	}
	suggests = append(suggests, prompt.Suggest{Text: "help"})

	exec := func(line string) {
		if err := a.exec(ctx, strings.Fields(line)); err != nil {
			a.log.Error(errors.ErrorStack(err))
		}
	}
	complete := func(d prompt.Document) []prompt.Suggest {
		if strings.Contains(d.TextBeforeCursor(), " ") {
			return nil
		}
		return cli.Suggest(d, suggests)
	}
	cli.MainLoop("domo-rpi", exec, complete, func() { _ = client.Close() })
}
