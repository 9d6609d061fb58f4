package driver_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/driver"
	"github.com/hesam/SketchSharp-sub001/internal/lower"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, driver.ConfigFileName)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfigMatchesLowerDefaults(t *testing.T) {
	cfg := driver.DefaultConfig()
	if cfg.Options() != lower.DefaultOptions() {
		t.Fatalf("defaults diverge: %+v vs %+v", cfg.Options(), lower.DefaultOptions())
	}
	if cfg.Driver.Emit != string(driver.EmitText) || cfg.Driver.CacheDir != "" {
		t.Fatalf("unexpected driver defaults %+v", cfg.Driver)
	}
	if cfg.Workers() != runtime.GOMAXPROCS(0) {
		t.Fatalf("zero jobs must mean GOMAXPROCS")
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
[lower]
max_old_depth = 1
null_safe_foreach = true

[driver]
jobs = 2
cache_dir = "cache"
emit = "msgpack"
`)
	cfg, err := driver.LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	want := lower.Options{MaxOldDepth: 1, InternalContracts: true, NullSafeForeach: true, CheckInvariantsInCtors: true}
	if cfg.Options() != want {
		t.Fatalf("options = %+v, want %+v", cfg.Options(), want)
	}
	if cfg.Workers() != 2 {
		t.Fatalf("workers = %d", cfg.Workers())
	}
	if cfg.Driver.CacheDir != filepath.Join(dir, "cache") {
		t.Fatalf("cache dir not resolved against the file: %q", cfg.Driver.CacheDir)
	}
	if cfg.Driver.Emit != "msgpack" {
		t.Fatalf("emit = %q", cfg.Driver.Emit)
	}
}

func TestLoadConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "[lower]\nmax_depth = 1\n", "lower.max_depth"},
		{"negative jobs", "[driver]\njobs = -1\n", "jobs"},
		{"bad emit", "[driver]\nemit = \"yaml\"\n", "emit"},
		{"negative depth", "[lower]\nmax_old_depth = -2\n", "max_old_depth"},
		{"not toml", "[lower\n", "failed to parse TOML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := driver.LoadConfig(writeConfig(t, t.TempDir(), tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestFindConfigWalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "[driver]\njobs = 1\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	got, ok, err := driver.FindConfig(nested)
	if err != nil || !ok {
		t.Fatalf("FindConfig: %v %v", ok, err)
	}
	if got != want {
		t.Fatalf("found %q, want %q", got, want)
	}
}

func TestParseEmit(t *testing.T) {
	for in, want := range map[string]driver.EmitFormat{"": driver.EmitText, "TEXT": driver.EmitText, "msgpack": driver.EmitMsgpack} {
		got, err := driver.ParseEmit(in)
		if err != nil || got != want {
			t.Fatalf("ParseEmit(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := driver.ParseEmit("llvm"); err == nil {
		t.Fatalf("unknown format must fail")
	}
}
