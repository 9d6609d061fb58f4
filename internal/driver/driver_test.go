package driver_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/driver"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/lower"
	"github.com/hesam/SketchSharp-sub001/internal/samples"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/trace"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func newDriver(t *testing.T, cfg driver.Config, sink driver.Sink) *driver.Driver {
	t.Helper()
	d, err := driver.New(cfg, sink)
	if err != nil {
		t.Fatalf("driver.New: %v", err)
	}
	return d
}

func parallelConfig() driver.Config {
	cfg := driver.DefaultConfig()
	cfg.Driver.Jobs = 4
	return cfg
}

func buildSample(t *testing.T, name string) *samples.Program {
	t.Helper()
	s, ok := samples.Lookup(name)
	if !ok {
		t.Fatalf("sample %q missing", name)
	}
	return s.Build()
}

func TestParallelMatchesSequential(t *testing.T) {
	d := newDriver(t, parallelConfig(), nil)
	for _, s := range samples.All() {
		t.Run(s.Name, func(t *testing.T) {
			res, err := d.Lower(context.Background(), s.Build().Module)
			if err != nil {
				t.Fatalf("Lower: %v", err)
			}

			seq := s.Build()
			mod, err := lower.LowerModule(seq.Module, lower.DefaultOptions())
			if err != nil {
				t.Fatalf("LowerModule: %v", err)
			}
			var want strings.Builder
			if err := lir.DumpModule(&want, mod, seq.Module.Types); err != nil {
				t.Fatalf("dump: %v", err)
			}
			if res.Text != want.String() {
				t.Fatalf("parallel lowering differs from sequential:\n--- parallel\n%s\n--- sequential\n%s", res.Text, want.String())
			}
			if res.Funcs != len(mod.Funcs()) || res.Types != len(mod.Types) {
				t.Fatalf("counts = %d/%d, want %d/%d", res.Funcs, res.Types, len(mod.Funcs()), len(mod.Types))
			}
		})
	}
}

func TestEncodedModuleDecodes(t *testing.T) {
	prog := buildSample(t, "iterators")
	res, err := newDriver(t, parallelConfig(), nil).Lower(context.Background(), prog.Module)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	mod, err := driver.DecodeModule(res.Encoded)
	if err != nil {
		t.Fatalf("DecodeModule: %v", err)
	}
	if err := lir.Validate(mod, prog.Module.Types); err != nil {
		t.Fatalf("decoded module is invalid: %v", err)
	}
	var sb strings.Builder
	if err := lir.DumpModule(&sb, mod, prog.Module.Types); err != nil {
		t.Fatalf("dump: %v", err)
	}
	if sb.String() != res.Text {
		t.Fatalf("decoded module dumps differently")
	}
	if mod.Method(prog.Entry, samples.EntryMethod) == nil {
		t.Fatalf("decoded module lost its entry method")
	}
	if _, err := driver.DecodeModule([]byte{0xc1}); err == nil {
		t.Fatalf("garbage must not decode")
	}
}

func TestWriteEmitsRequestedFormat(t *testing.T) {
	res, err := newDriver(t, driver.DefaultConfig(), nil).Lower(context.Background(), buildSample(t, "switch").Module)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	var text, packed bytes.Buffer
	if err := res.Write(&text, driver.EmitText); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := res.Write(&packed, driver.EmitMsgpack); err != nil {
		t.Fatalf("write msgpack: %v", err)
	}
	if text.String() != res.Text || !strings.Contains(text.String(), "fn Program.Main [method]") {
		t.Fatalf("text output mismatch:\n%s", text.String())
	}
	if !bytes.Equal(packed.Bytes(), res.Encoded) {
		t.Fatalf("msgpack output mismatch")
	}
}

type recorder struct {
	mu     sync.Mutex
	events []driver.Event
}

func (r *recorder) OnEvent(ev driver.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestEventsCoverEveryProcedure(t *testing.T) {
	rec := &recorder{}
	prog := buildSample(t, "contracts")
	if _, err := newDriver(t, parallelConfig(), rec).LowerAll(context.Background(), []*ast.Module{prog.Module}); err != nil {
		t.Fatalf("LowerAll: %v", err)
	}

	var total, procsDone int
	var queued, finished bool
	procs := map[string]bool{}
	for _, ev := range rec.events {
		switch {
		case ev.Proc == "" && ev.Status == driver.StatusQueued:
			queued = true
		case ev.Proc == "" && ev.Stage == driver.StageLower && ev.Status == driver.StatusWorking:
			total = ev.Total
		case ev.Proc != "" && ev.Status == driver.StatusDone:
			procsDone++
			procs[ev.Proc] = true
		case ev.Proc == "" && ev.Status == driver.StatusDone:
			finished = true
		}
	}
	if !queued || !finished {
		t.Fatalf("missing module queued/done events: %+v", rec.events)
	}
	if total == 0 || procsDone != total {
		t.Fatalf("%d procedures finished, %d announced", procsDone, total)
	}
	if !procs["Account."+lower.CheckInvariantName] || !procs["Program.Main"] {
		t.Fatalf("procedure events lack the invariant checker or Main: %v", procs)
	}
}

func TestMalformedModuleFails(t *testing.T) {
	in := types.NewInterner()
	syms := symbols.NewTable()
	b := ast.NewBuilder(in, syms)
	prog := b.Class("Program", types.KindClass, types.ClassPublic)
	b.Method(prog, "Broken", b.B.Void, nil, nil, ast.FuncStatic)
	m := &ast.Module{Name: "broken", Types: in, Symbols: syms, Decls: []*ast.TypeDecl{prog}}

	rec := &recorder{}
	_, err := newDriver(t, parallelConfig(), rec).Lower(context.Background(), m)
	if !errors.Is(err, lower.ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	var sawProc, sawModule bool
	for _, ev := range rec.events {
		if ev.Status != driver.StatusError {
			continue
		}
		if ev.Proc == "Program.Broken" {
			sawProc = true
		}
		if ev.Proc == "" && ev.Err != nil {
			sawModule = true
		}
	}
	if !sawProc || !sawModule {
		t.Fatalf("error events missing: %+v", rec.events)
	}

	if _, err := newDriver(t, parallelConfig(), nil).Lower(context.Background(), &ast.Module{Name: "empty"}); !errors.Is(err, lower.ErrMalformed) {
		t.Fatalf("module without interner: err = %v", err)
	}
}

func TestCancelledContextStopsLowering(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newDriver(t, parallelConfig(), nil).Lower(ctx, buildSample(t, "loops").Module)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestDiskCacheServesRepeatedLowering(t *testing.T) {
	cfg := parallelConfig()
	cfg.Driver.CacheDir = t.TempDir()

	first, err := newDriver(t, cfg, nil).Lower(context.Background(), buildSample(t, "closures").Module)
	if err != nil {
		t.Fatalf("first Lower: %v", err)
	}
	if first.Cached || first.Module == nil {
		t.Fatalf("first lowering must not come from the cache")
	}

	rec := &recorder{}
	second, err := newDriver(t, cfg, rec).Lower(context.Background(), buildSample(t, "closures").Module)
	if err != nil {
		t.Fatalf("second Lower: %v", err)
	}
	if !second.Cached || second.Module != nil {
		t.Fatalf("second lowering must be a cache hit")
	}
	if second.Key != first.Key || second.Text != first.Text || !bytes.Equal(second.Encoded, first.Encoded) {
		t.Fatalf("cached result differs from the original")
	}
	if second.Funcs != first.Funcs || second.Types != first.Types {
		t.Fatalf("cached counts differ")
	}
	last := rec.events[len(rec.events)-1]
	if last.Status != driver.StatusCached {
		t.Fatalf("last event = %+v, want cached", last)
	}
}

func TestDiskCacheDropAll(t *testing.T) {
	cache, err := driver.OpenDiskCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenDiskCache: %v", err)
	}
	prog := buildSample(t, "loops")
	key := driver.CacheKey(prog.Module, driver.DefaultConfig())
	if err := cache.Put(key, &driver.DiskPayload{Schema: 1, Name: "loops", Key: key, Text: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got driver.DiskPayload
	if ok, err := cache.Get(key, &got); !ok || err != nil || got.Text != "x" {
		t.Fatalf("Get = %v, %v, %+v", ok, err, got)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	if ok, err := cache.Get(key, &got); ok || err != nil {
		t.Fatalf("entry survived DropAll: %v %v", ok, err)
	}
}

func TestCacheKey(t *testing.T) {
	a, b := buildSample(t, "loops"), buildSample(t, "loops")
	cfg := driver.DefaultConfig()
	key := driver.CacheKey(a.Module, cfg)
	if key.IsZero() || key != driver.CacheKey(b.Module, cfg) {
		t.Fatalf("identical modules must share a key")
	}

	jobs := cfg
	jobs.Driver.Jobs = 7
	if driver.CacheKey(a.Module, jobs) != key {
		t.Fatalf("jobs must not affect the key")
	}
	depth := cfg
	depth.Lower.MaxOldDepth = 0
	if driver.CacheKey(a.Module, depth) == key {
		t.Fatalf("lowering options must affect the key")
	}
	if driver.CacheKey(buildSample(t, "switch").Module, cfg) == key {
		t.Fatalf("different programs must not share a key")
	}
}

func TestLoweringOpensTraceSpans(t *testing.T) {
	ring := trace.NewRingTracer(256, trace.LevelDetail)
	ctx := trace.WithTracer(context.Background(), ring)
	if _, err := newDriver(t, parallelConfig(), nil).Lower(ctx, buildSample(t, "loops").Module); err != nil {
		t.Fatalf("Lower: %v", err)
	}
	var pass uint64
	procParents := map[uint64]bool{}
	for _, ev := range ring.Snapshot() {
		if ev.Kind != trace.KindSpanBegin {
			continue
		}
		switch {
		case ev.Name == "lower:loops" && ev.Scope == trace.ScopePass:
			pass = ev.SpanID
		case ev.Name == "proc:Program.Main" && ev.Scope == trace.ScopeProcedure:
			procParents[ev.ParentID] = true
		}
	}
	if pass == 0 || !procParents[pass] {
		t.Fatalf("procedure span must nest in the module pass span")
	}
}

func TestWriteTimings(t *testing.T) {
	res, err := newDriver(t, driver.DefaultConfig(), nil).Lower(context.Background(), buildSample(t, "loops").Module)
	if err != nil {
		t.Fatalf("Lower: %v", err)
	}
	var text, js bytes.Buffer
	if err := driver.WriteTimings(&text, []*driver.Result{res}, false); err != nil {
		t.Fatalf("WriteTimings: %v", err)
	}
	for _, phase := range []string{"timings (loops)", "fingerprint", "lower", "validate", "encode"} {
		if !strings.Contains(text.String(), phase) {
			t.Fatalf("timings lack %q:\n%s", phase, text.String())
		}
	}
	if err := driver.WriteTimings(&js, []*driver.Result{res}, true); err != nil {
		t.Fatalf("WriteTimings json: %v", err)
	}
	if !strings.HasPrefix(js.String(), `{"kind":"lower","module":"loops"`) {
		t.Fatalf("unexpected json: %s", js.String())
	}
}
