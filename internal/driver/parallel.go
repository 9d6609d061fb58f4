// Package driver lowers whole modules: it fans procedures out to a
// bounded worker group, validates and renders the result, and keeps an
// optional on-disk cache keyed by module fingerprint.
package driver

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/lower"
	"github.com/hesam/SketchSharp-sub001/internal/observ"
	"github.com/hesam/SketchSharp-sub001/internal/trace"
)

// Result is the outcome of lowering one module.
type Result struct {
	Name string
	Key  Digest
	// Module is nil when the result came from the disk cache.
	Module  *lir.Module
	Text    string
	Encoded []byte
	Funcs   int
	Types   int
	Cached  bool
	Timings observ.Report
}

// Driver lowers modules under one configuration.
type Driver struct {
	cfg   Config
	cache *DiskCache
	sink  Sink
}

// New validates cfg and opens the disk cache when one is configured.
// sink may be nil.
func New(cfg Config, sink Sink) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{cfg: cfg, sink: sink}
	if cfg.Driver.CacheDir != "" {
		cache, err := OpenDiskCache(cfg.Driver.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		d.cache = cache
	}
	return d, nil
}

// Config returns the configuration the driver was built with.
func (d *Driver) Config() Config { return d.cfg }

// Cache returns the disk cache, or nil.
func (d *Driver) Cache() *DiskCache { return d.cache }

// LowerAll lowers mods one after another, stopping at the first error.
func (d *Driver) LowerAll(ctx context.Context, mods []*ast.Module) ([]*Result, error) {
	ctx, span := trace.Start(ctx, trace.ScopeDriver, "lower")
	defer span.End("")
	for _, m := range mods {
		if m != nil {
			emit(d.sink, Event{Module: m.Name, Stage: StageLower, Status: StatusQueued})
		}
	}
	out := make([]*Result, 0, len(mods))
	for _, m := range mods {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := d.Lower(ctx, m)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// Lower lowers every procedure of m in parallel, assembles and validates
// the module, and renders both outputs. With a cache configured a
// previously lowered identical module is returned without lowering.
func (d *Driver) Lower(ctx context.Context, m *ast.Module) (res *Result, err error) {
	if m == nil || m.Types == nil || m.Symbols == nil {
		return nil, fmt.Errorf("%w: module lacks its interner or symbol table", lower.ErrMalformed)
	}
	ctx, span := trace.Start(ctx, trace.ScopePass, "lower:"+m.Name)
	timer := observ.NewTimer()
	start := time.Now()
	stage := StageLower
	defer func() {
		if err != nil {
			emit(d.sink, Event{Module: m.Name, Stage: stage, Status: StatusError, Err: err, Elapsed: time.Since(start)})
			span.End(err.Error())
			return
		}
		status := StatusDone
		if res.Cached {
			status = StatusCached
		}
		emit(d.sink, Event{Module: m.Name, Stage: stage, Status: status, Elapsed: time.Since(start)})
		span.WithExtra("funcs", strconv.Itoa(res.Funcs)).WithExtra("cached", strconv.FormatBool(res.Cached)).End("")
	}()

	done := timer.Track("fingerprint")
	res = &Result{Name: m.Name, Key: CacheKey(m, d.cfg)}
	done(res.Key.String()[:12])

	if hit, ok := d.fromCache(ctx, res.Key); ok {
		hit.Timings = timer.Report()
		return hit, nil
	}

	done = timer.Track("lower")
	mod, err := d.lowerProcs(ctx, m)
	if err != nil {
		return nil, err
	}
	done(fmt.Sprintf("%d workers", d.cfg.Workers()))

	stage = StageValidate
	emit(d.sink, Event{Module: m.Name, Stage: stage, Status: StatusWorking})
	done = timer.Track("validate")
	if err := lir.Validate(mod, m.Types); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", lower.ErrInternal, m.Name, err)
	}
	done("")

	stage = StageEncode
	emit(d.sink, Event{Module: m.Name, Stage: stage, Status: StatusWorking})
	done = timer.Track("encode")
	var sb strings.Builder
	if err := lir.DumpModule(&sb, mod, m.Types); err != nil {
		return nil, fmt.Errorf("%s: dump: %w", m.Name, err)
	}
	encoded, err := EncodeModule(mod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	done("")

	res.Module = mod
	res.Text = sb.String()
	res.Encoded = encoded
	res.Funcs = len(mod.Funcs())
	res.Types = len(mod.Types)
	res.Timings = timer.Report()

	if d.cache != nil {
		payload := &DiskPayload{
			Schema:  diskCacheSchemaVersion,
			Name:    res.Name,
			Key:     res.Key,
			Funcs:   res.Funcs,
			Types:   res.Types,
			Text:    res.Text,
			Module:  res.Encoded,
			Timings: res.Timings,
		}
		if err := d.cache.Put(res.Key, payload); err != nil {
			trace.Point(trace.FromContext(ctx), trace.ScopePass, "cache:put", err.Error(), trace.CurrentSpan(ctx).SpanID)
		}
	}
	return res, nil
}

// fromCache serves a hit. Unreadable entries are treated as misses.
func (d *Driver) fromCache(ctx context.Context, key Digest) (*Result, bool) {
	if d.cache == nil {
		return nil, false
	}
	var payload DiskPayload
	ok, err := d.cache.Get(key, &payload)
	if err != nil {
		trace.Point(trace.FromContext(ctx), trace.ScopePass, "cache:get", err.Error(), trace.CurrentSpan(ctx).SpanID)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return &Result{
		Name:    payload.Name,
		Key:     key,
		Text:    payload.Text,
		Encoded: payload.Module,
		Funcs:   payload.Funcs,
		Types:   payload.Types,
		Cached:  true,
	}, true
}

// procJob is one unit of parallel work: a declared method, or the
// invariant checker of a declaration when fn is nil.
type procJob struct {
	decl int
	slot int
	fn   *ast.Func
}

func (j procJob) name(m *ast.Module) string {
	d := m.Decls[j.decl]
	if j.fn == nil {
		return d.Name + "." + lower.CheckInvariantName
	}
	return d.Name + "." + j.fn.Name
}

// lowerProcs fans the procedures of m out to at most Workers goroutines.
// Each job writes only its own slot, and Assemble merges the slots in
// declaration order, so the result does not depend on scheduling.
func (d *Driver) lowerProcs(ctx context.Context, m *ast.Module) (*lir.Module, error) {
	s := lower.NewSession(m, d.cfg.Options())
	procs := make([][]*lower.Proc, len(m.Decls))
	var jobs []procJob
	for i, decl := range m.Decls {
		procs[i] = make([]*lower.Proc, len(decl.Methods)+1)
		for j, fn := range decl.Methods {
			jobs = append(jobs, procJob{decl: i, slot: j, fn: fn})
		}
		if s.HasInvariant(decl.Type) {
			jobs = append(jobs, procJob{decl: i, slot: len(decl.Methods)})
		}
	}
	emit(d.sink, Event{Module: m.Name, Stage: StageLower, Status: StatusWorking, Total: len(jobs)})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, min(d.cfg.Workers(), len(jobs))))
	for _, job := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			name := job.name(m)
			_, span := trace.Start(gctx, trace.ScopeProcedure, "proc:"+name)
			start := time.Now()

			var (
				p   *lower.Proc
				err error
			)
			if job.fn != nil {
				p, err = s.LowerProc(job.fn)
			} else {
				p, err = s.LowerInvariant(m.Decls[job.decl])
			}
			if err != nil {
				span.End(err.Error())
				emit(d.sink, Event{Module: m.Name, Proc: name, Stage: StageLower, Status: StatusError, Err: err, Elapsed: time.Since(start)})
				return err
			}
			procs[job.decl][job.slot] = p
			span.WithExtra("funcs", strconv.Itoa(len(p.Funcs()))).End("")
			emit(d.sink, Event{Module: m.Name, Proc: name, Stage: StageLower, Status: StatusDone, Elapsed: time.Since(start)})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", m.Name, err)
		}
		return nil, err
	}
	return lower.Assemble(m, procs), nil
}
