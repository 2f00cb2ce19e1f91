package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"inputrelay/internal/config"
	"inputrelay/internal/input"
	"inputrelay/internal/network"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("inputrelay", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlagsOnlyOverridesGivenFlags(t *testing.T) {
	opts, err := parseFlags(newFlagSet(), []string{"-mouse-speed=2", "-tray"})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig()
	cfg.Server.Port = 20000
	opts.apply(cfg)

	if cfg.Server.Port != 20000 {
		t.Errorf("port changed to %d without -port", cfg.Server.Port)
	}
	if cfg.Server.MouseSpeed != 2 {
		t.Errorf("mouse speed = %v, want 2", cfg.Server.MouseSpeed)
	}
	if cfg.Server.WheelSpeed != 1 {
		t.Errorf("wheel speed = %v, want 1", cfg.Server.WheelSpeed)
	}
	if !cfg.General.ShowTray {
		t.Error("expected tray enabled")
	}
}

func TestParseFlagsAutostart(t *testing.T) {
	if _, err := parseFlags(newFlagSet(), []string{"-autostart=enable"}); err != nil {
		t.Fatal(err)
	}
	if _, err := parseFlags(newFlagSet(), []string{"-autostart=maybe"}); err == nil {
		t.Fatal("expected error for unknown autostart action")
	}
}

func TestLoadConfigLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"server":{"port":1000,"mouse_speed":3}}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(config.EnvMouseSpeed, "4")

	opts, err := parseFlags(newFlagSet(), []string{"-config", path, "-port", "2000"})
	if err != nil {
		t.Fatal(err)
	}
	mgr, err := loadConfig(opts, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}

	cfg := mgr.Get()
	if cfg.Server.Port != 2000 {
		t.Errorf("port = %d, want flag value 2000", cfg.Server.Port)
	}
	if cfg.Server.MouseSpeed != 4 {
		t.Errorf("mouse speed = %v, want env value 4", cfg.Server.MouseSpeed)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	opts, err := parseFlags(newFlagSet(), []string{"-config", filepath.Join(t.TempDir(), "none.json"), "-wheel-speed=0"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(opts, zap.NewNop()); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStatusLine(t *testing.T) {
	got := statusLine(19876, network.Stats{Received: 10, DecodeErrors: 2, HandleErrors: 1})
	if want := "Port 19876: 10 received, 3 errors"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestNewInjector(t *testing.T) {
	if _, ok := newInjector(true, zap.NewNop()).(*input.LogInjector); !ok {
		t.Fatal("dry run must log instead of injecting")
	}

	inj := newInjector(false, zap.NewNop())
	_, logs := inj.(*input.LogInjector)
	if input.RobotSupported == logs {
		t.Fatalf("RobotSupported=%v but got %T", input.RobotSupported, inj)
	}
}
