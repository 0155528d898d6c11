package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Food.Target != 100 {
		t.Errorf("food target = %d, want 100", cfg.Food.Target)
	}
}

func TestLoadConfigNoFile(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Addr != ":4000" || cfg.World.Width != 1000 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agar.yaml")
	yaml := `
server:
  addr: ":9000"
  state_encoding: msgpack
world:
  width: 2000
food:
  target: 40
loop:
  broadcast_interval: 50ms
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.StateEncoding != EncodingMsgpack {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.World.Width != 2000 || cfg.World.Height != 500 {
		t.Errorf("world = %+v, want width overridden and height kept", cfg.World)
	}
	if cfg.Food.Target != 40 || cfg.Food.MaxRadius != 5 {
		t.Errorf("food = %+v", cfg.Food)
	}
	if cfg.Loop.BroadcastInterval != 50*time.Millisecond || cfg.Loop.TickInterval != 2*time.Millisecond {
		t.Errorf("loop = %+v", cfg.Loop)
	}
}

func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agar.yaml")
	if err := os.WriteFile(path, []byte("world:\n  height: 800\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AGAR_WORLD_HEIGHT", "600")
	t.Setenv("AGAR_PHYSICS_MINIMUM_MERGE_DIFFERENCE", "0.5")
	t.Setenv("AGAR_LOOP_TICK_INTERVAL", "4ms")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.World.Height != 600 {
		t.Errorf("height = %f, want 600 from env", cfg.World.Height)
	}
	if cfg.Physics.MinimumMergeDifference != 0.5 {
		t.Errorf("merge difference = %f, want 0.5", cfg.Physics.MinimumMergeDifference)
	}
	if cfg.Loop.TickInterval != 4*time.Millisecond {
		t.Errorf("tick interval = %v, want 4ms", cfg.Loop.TickInterval)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("world: [not, a, map"), 0o644)
	if _, err := LoadConfig(path); err == nil {
		t.Error("malformed YAML should fail")
	}
}

func TestValidateReportsEveryFault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.World.Width = 0
	cfg.Food.Target = -1
	cfg.Physics.MinimumMergeDifference = 1
	cfg.Loop.MaxStep = time.Microsecond
	cfg.Server.StateEncoding = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []error{ErrWorldBounds, ErrFoodTarget, ErrMergeThreshold, ErrMaxStep, ErrEncoding} {
		if !errors.Is(err, want) {
			t.Errorf("error %v does not include %v", err, want)
		}
	}
	if errors.Is(err, ErrBroadcast) {
		t.Errorf("unexpected %v", ErrBroadcast)
	}
}

func TestValidateMergeThreshold(t *testing.T) {
	tests := []struct {
		value float64
		ok    bool
	}{
		{0, true},
		{0.25, true},
		{0.999, true},
		{1, false},
		{-0.1, false},
	}
	for _, tt := range tests {
		cfg := DefaultConfig()
		cfg.Physics.MinimumMergeDifference = tt.value
		err := cfg.Validate()
		if (err == nil) != tt.ok {
			t.Errorf("threshold %v: err = %v, want ok=%v", tt.value, err, tt.ok)
		}
	}
}
