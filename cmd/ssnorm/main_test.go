package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/samples"
)

// execute runs the CLI with args and fresh flag values. Every run gets an
// empty config file so a ssnorm.toml above the checkout cannot leak in.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg := filepath.Join(t.TempDir(), "ssnorm.toml")
	if err := os.WriteFile(cfg, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(append([]string{"--color", "off", "--config", cfg}, args...))
	err := rootCmd.Execute()
	runCleanups()
	return stdout.String(), stderr.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func TestReadUIMode(t *testing.T) {
	for in, want := range map[string]uiMode{"": uiModeAuto, "AUTO": uiModeAuto, " on ": uiModeOn, "off": uiModeOff} {
		got, err := readUIMode(in)
		if err != nil || got != want {
			t.Fatalf("readUIMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := readUIMode("sometimes"); err == nil {
		t.Fatalf("expected an error for an unknown mode")
	}
	if !uiModeOn.useTUI() || uiModeOff.useTUI() {
		t.Fatalf("explicit modes must be honored")
	}
	var m uiMode
	if m.String() != "auto" {
		t.Fatalf("zero mode = %q", m.String())
	}
	if err := m.Set("ON"); err != nil || m != uiModeOn {
		t.Fatalf("Set(ON) = %q, %v", m, err)
	}
	if err := m.Set("maybe"); err == nil {
		t.Fatalf("Set accepted an unknown mode")
	}
}

func TestLowerPrintsTextIR(t *testing.T) {
	out, _, err := execute(t, "lower", "--ui", "off", "loops")
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if !strings.Contains(out, "fn Program.Main") {
		t.Fatalf("output lacks the entry method:\n%s", out)
	}
}

func TestLowerWritesMsgpackFiles(t *testing.T) {
	dir := t.TempDir()
	if _, _, err := execute(t, "lower", "--ui", "off", "--emit", "msgpack", "--out", dir, "switch", "loops"); err != nil {
		t.Fatalf("lower: %v", err)
	}
	for _, name := range []string{"switch", "loops"} {
		data, err := os.ReadFile(filepath.Join(dir, name+".msgpack"))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		var mod lir.Module
		if err := msgpack.Unmarshal(data, &mod); err != nil {
			t.Fatalf("decode %s: %v", name, err)
		}
		if mod.Name != name {
			t.Fatalf("module name = %q, want %q", mod.Name, name)
		}
	}
}

func TestLowerRejectsBadUIMode(t *testing.T) {
	if _, _, err := execute(t, "lower", "--ui", "sometimes", "loops"); err == nil || !strings.Contains(err.Error(), "invalid ui mode") {
		t.Fatalf("err = %v", err)
	}
}

func TestLowerRejectsUnknownSample(t *testing.T) {
	if _, _, err := execute(t, "lower", "--ui", "off", "nope"); err == nil || !strings.Contains(err.Error(), "unknown sample") {
		t.Fatalf("err = %v", err)
	}
}

func TestLowerTimingsGoToStderr(t *testing.T) {
	_, errOut, err := execute(t, "--timings", "lower", "--ui", "off", "loops")
	if err != nil {
		t.Fatalf("lower: %v", err)
	}
	if !strings.Contains(errOut, "timings (loops)") {
		t.Fatalf("stderr lacks timings:\n%s", errOut)
	}
}

func TestRunCheckMatchesExpectedOutput(t *testing.T) {
	for _, name := range []string{"loops", "exceptions", "queries"} {
		s, _ := samples.Lookup(name)
		out, errOut, err := execute(t, "run", "--check", name)
		if err != nil {
			t.Fatalf("run %s: %v\n%s", name, err, errOut)
		}
		if out != s.Want() {
			t.Fatalf("run %s printed %q", name, out)
		}
		if !strings.Contains(errOut, "output matches") {
			t.Fatalf("run %s: stderr = %q", name, errOut)
		}
	}
}

func TestRunUnknownMethodFails(t *testing.T) {
	_, errOut, err := execute(t, "run", "loops", "NoSuchMethod")
	if err != errRunFailed {
		t.Fatalf("err = %v", err)
	}
	if !strings.Contains(errOut, "error: ") {
		t.Fatalf("stderr = %q", errOut)
	}
}

func TestSamplesListsEveryName(t *testing.T) {
	out, _, err := execute(t, "samples")
	if err != nil {
		t.Fatalf("samples: %v", err)
	}
	for _, name := range samples.Names() {
		if !strings.Contains(out, name) {
			t.Fatalf("listing lacks %q", name)
		}
	}
}

func TestVersionJSON(t *testing.T) {
	out, _, err := execute(t, "version", "--format", "json", "--hash")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, `"tool": "ssnorm"`) || !strings.Contains(out, `"git_commit": "unknown"`) {
		t.Fatalf("unexpected payload:\n%s", out)
	}
}

func TestProfilingFlagsWriteFiles(t *testing.T) {
	dir := t.TempDir()
	cpu := filepath.Join(dir, "cpu.pprof")
	mem := filepath.Join(dir, "mem.pprof")
	if _, _, err := execute(t, "--cpu-profile", cpu, "--mem-profile", mem, "samples"); err != nil {
		t.Fatalf("samples: %v", err)
	}
	for _, path := range []string{cpu, mem} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("profile missing: %v", err)
		}
	}
}

func TestTraceFlagWritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lower.ndjson")
	if _, _, err := execute(t, "--trace", path, "--trace-level", "detail", "lower", "--ui", "off", "loops"); err != nil {
		t.Fatalf("lower: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read trace: %v", err)
	}
	if !strings.Contains(string(data), `"lower:loops"`) {
		t.Fatalf("trace lacks the module pass span:\n%s", data)
	}
}
