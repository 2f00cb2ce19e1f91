// Input Relay
// Receives mouse and keyboard commands from a remote controller over UDP and
// replays them on this machine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"inputrelay/internal/autostart"
	"inputrelay/internal/config"
	"inputrelay/internal/input"
	"inputrelay/internal/network"
	"inputrelay/internal/osutils"
	"inputrelay/internal/tray"
)

var version = "0.1.0"

// options holds the parsed command line
type options struct {
	port       int
	mouseSpeed float64
	wheelSpeed float64
	tray       bool
	autostart  string
	configPath string
	debug      bool
	dryRun     bool
	version    bool

	// set records which flags were given explicitly
	set map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*options, error) {
	o := &options{set: make(map[string]bool)}
	fs.IntVar(&o.port, "port", network.DefaultPort, "UDP port to listen on")
	fs.Float64Var(&o.mouseSpeed, "mouse-speed", 1.0, "Multiplier for mouse movement")
	fs.Float64Var(&o.wheelSpeed, "wheel-speed", 1.0, "Multiplier for wheel steps")
	fs.BoolVar(&o.tray, "tray", false, "Show a system tray icon")
	fs.StringVar(&o.autostart, "autostart", "", "Start on login: enable or disable, then exit")
	fs.StringVar(&o.configPath, "config", "", "Path to the config file")
	fs.BoolVar(&o.debug, "debug", false, "Enable development logging")
	fs.BoolVar(&o.dryRun, "dry-run", false, "Log received input instead of injecting it")
	fs.BoolVar(&o.version, "version", false, "Show version")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })

	switch o.autostart {
	case "", "enable", "disable":
	default:
		return nil, fmt.Errorf("-autostart must be enable or disable, got %q", o.autostart)
	}
	return o, nil
}

// apply overrides cfg with every flag given on the command line
func (o *options) apply(cfg *config.Config) {
	if o.set["port"] {
		cfg.Server.Port = o.port
	}
	if o.set["mouse-speed"] {
		cfg.Server.MouseSpeed = o.mouseSpeed
	}
	if o.set["wheel-speed"] {
		cfg.Server.WheelSpeed = o.wheelSpeed
	}
	if o.set["tray"] {
		cfg.General.ShowTray = o.tray
	}
}

func newLogger(debug bool) *zap.Logger {
	if debug || os.Getenv("APP_ENV") == "development" {
		return zap.Must(zap.NewDevelopment())
	}
	return zap.Must(zap.NewProduction())
}

func main() {
	os.Exit(run())
}

func run() int {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	if opts.version {
		fmt.Printf("inputrelay version %s\n", version)
		return 0
	}

	logger := newLogger(opts.debug)
	defer logger.Sync()

	logger = logger.With(zap.String("instance", uuid.NewString()))
	logger.Info("Input Relay starting", zap.String("version", version))

	cfgMgr, err := loadConfig(opts, logger)
	if err != nil {
		logger.Error("Invalid configuration", zap.Error(err))
		return 1
	}
	cfg := cfgMgr.Get()

	if opts.autostart != "" {
		if err := setAutostart(opts.autostart == "enable", cfg, logger); err != nil {
			logger.Error("Failed to change auto-start", zap.Error(err))
			return 1
		}
		cfg.General.StartOnBoot = opts.autostart == "enable"
		cfgMgr.Set(cfg)
		if err := cfgMgr.Save(); err != nil {
			logger.Warn("Failed to save config", zap.Error(err))
		}
		return 0
	}
	if cfg.General.StartOnBoot && !autostart.IsEnabled() {
		if err := setAutostart(true, cfg, logger); err != nil {
			logger.Warn("Failed to enable auto-start", zap.Error(err))
		}
	}

	if runtime.GOOS == "windows" && cfg.General.ManageFirewall {
		if !osutils.IsAdmin() {
			logger.Info("Not running as Administrator, the firewall rule may prompt for elevation")
		}
		go func() {
			if err := osutils.EnsureFirewallRule(cfg.Server.Port, logger); err != nil {
				logger.Warn("Firewall rule not created", zap.Error(err))
			}
		}()
	}

	if ip, err := network.GetLocalIP(); err == nil {
		logger.Info("Point the controller at this address",
			zap.String("ip", ip), zap.Int("port", cfg.Server.Port))
	} else {
		logger.Warn("Could not determine local IP", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	injector := newInjector(opts.dryRun, logger)

	relay := network.NewRelay(network.RelayConfig{
		Port:            cfg.Server.Port,
		MouseSpeed:      cfg.Server.MouseSpeed,
		WheelSpeed:      cfg.Server.WheelSpeed,
		MaxDatagramSize: cfg.Server.MaxDatagramSize,
		Reply:           network.HandshakeReply(ctx, logger),
		Logger:          logger,
	}, injector)

	if cfg.General.ShowTray {
		err = runWithTray(ctx, relay, cfg, logger)
	} else {
		err = relay.Run(ctx)
	}

	if err != nil {
		var te *network.TransportError
		if errors.As(err, &te) {
			logger.Error("Relay failed", zap.String("op", te.Op), zap.Error(te.Err))
		} else {
			logger.Error("Relay failed", zap.Error(err))
		}
		return 1
	}

	stats := relay.Stats()
	logger.Info("Shut down",
		zap.Uint64("received", stats.Received),
		zap.Uint64("dispatched", stats.Dispatched),
		zap.Uint64("decode_errors", stats.DecodeErrors))
	return 0
}

// newInjector picks robotgo unless asked for a dry run or built without
// cgo, where it falls back to logging.
func newInjector(dryRun bool, logger *zap.Logger) input.Injector {
	if dryRun {
		return input.NewLogInjector(logger)
	}
	if !input.RobotSupported {
		logger.Warn("Built without cgo, input injection unavailable; logging received input instead")
		return input.NewLogInjector(logger)
	}
	return input.NewRobotInjector()
}

// loadConfig layers the config file, .env and INPUTRELAY_* variables, and
// the command line, in that order.
func loadConfig(opts *options, logger *zap.Logger) (*config.Manager, error) {
	var cfgMgr *config.Manager
	if opts.configPath != "" {
		cfgMgr = config.NewManagerAt(opts.configPath, logger)
	} else {
		m, err := config.NewManager(logger)
		if err != nil {
			return nil, err
		}
		cfgMgr = m
	}

	if err := cfgMgr.Load(); err != nil {
		logger.Warn("Failed to load config, using defaults", zap.String("path", cfgMgr.Path()), zap.Error(err))
	}
	if err := cfgMgr.LoadEnv(); err != nil {
		return nil, err
	}

	cfg := cfgMgr.Get()
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfgMgr.Set(cfg)
	return cfgMgr, nil
}

func setAutostart(enable bool, cfg config.Config, logger *zap.Logger) error {
	if !enable {
		logger.Info("Disabling auto-start")
		return autostart.Disable()
	}

	var args []string
	if cfg.General.ShowTray {
		args = append(args, "-tray")
	}
	logger.Info("Enabling auto-start", zap.Strings("args", args))
	return autostart.Enable(args...)
}

// runWithTray serves from a goroutine while the tray owns the main thread.
// Quitting from the menu cancels the relay; a relay failure closes the tray.
func runWithTray(ctx context.Context, relay *network.Relay, cfg config.Config, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t := tray.New(fmt.Sprintf("Input Relay - UDP port %d", cfg.Server.Port))
	status := t.AddLabel("Starting...")
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		logger.Info("Quit requested from tray")
		t.Stop()
	})
	t.OnQuit(cancel)

	// systray must be running before it can be asked to quit
	stopTray := func() {
		<-t.Ready()
		t.Stop()
	}

	errCh := make(chan error, 1)
	go func() {
		err := relay.Run(ctx)
		errCh <- err
		stopTray()
	}()

	go func() {
		select {
		case <-relay.Ready:
		case <-ctx.Done():
			return
		}
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			t.SetItemTitle(status, statusLine(relay.Port, relay.Stats()))
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	// Signals end the tray loop too
	go func() {
		<-ctx.Done()
		stopTray()
	}()

	t.Run()
	cancel()
	return <-errCh
}

func statusLine(port int, s network.Stats) string {
	return fmt.Sprintf("Port %d: %d received, %d errors", port, s.Received, s.DecodeErrors+s.HandleErrors)
}
