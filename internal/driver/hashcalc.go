package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"fortio.org/safecast"

	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Digest is a SHA-256 value.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool { return d == Digest{} }

// combineDigest hashes the parts in order.
func combineDigest(parts ...Digest) Digest {
	h := sha256.New()
	for _, p := range parts {
		_, _ = h.Write(p[:])
	}
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

func sum(h hash.Hash) Digest {
	var out Digest
	copy(out[:], h.Sum(nil))
	return out
}

// CacheKey identifies the lowered form of m under cfg. Only settings that
// change the output take part; jobs and the cache location do not.
func CacheKey(m *ast.Module, cfg Config) Digest {
	h := sha256.New()
	fmt.Fprintf(h, "schema=%d\n", diskCacheSchemaVersion)
	fmt.Fprintf(h, "lower=%+v\n", cfg.Lower)
	return combineDigest(sum(h), Fingerprint(m))
}

// Fingerprint hashes a canonical dump of m: declarations, signatures,
// contracts and every statement and expression in pre-order. Type ids
// are rendered through the interner so the digest does not depend on
// registration order.
func Fingerprint(m *ast.Module) Digest {
	h := sha256.New()
	d := &dumper{w: h, in: m.Types}
	d.module(m)
	return sum(h)
}

type dumper struct {
	w  io.Writer
	in *types.Interner
}

func (d *dumper) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(d.w, format, args...)
}

func (d *dumper) typ(id types.TypeID) string {
	if id == types.NoTypeID {
		return "-"
	}
	return d.in.TypeString(id)
}

func (d *dumper) count(n int) uint32 {
	c, err := safecast.Conv[uint32](n)
	if err != nil {
		return ^uint32(0)
	}
	return c
}

func (d *dumper) module(m *ast.Module) {
	d.printf("module %s decls=%d\n", m.Name, d.count(len(m.Decls)))
	for _, decl := range m.Decls {
		d.printf("type %s %s methods=%d\n", decl.Name, d.typ(decl.Type), d.count(len(decl.Methods)))
		d.clauses("invariant", decl.Invariants)
		for _, mf := range decl.ModelFields {
			d.printf("model %s %s\n", mf.Name, d.typ(mf.Type))
			d.clauses("satisfies", mf.Satisfies)
		}
		for _, fn := range decl.Methods {
			d.fn(fn)
		}
	}
}

func (d *dumper) fn(fn *ast.Func) {
	d.printf("func %s flags=%d result=%s\n", fn.Name, fn.Flags, d.typ(fn.Result))
	for _, p := range fn.Params {
		d.printf("param %s %s sym=%d nonnull=%t\n", p.Name, d.typ(p.Type), p.Sym, p.NonNull)
	}
	if c := fn.Contract; c != nil {
		d.clauses("requires", c.Requires)
		d.clauses("ensures", c.Ensures)
		for _, t := range c.Throws {
			d.printf("throws %s %q\n", d.typ(t.Type), t.Text)
			ast.Visitor{Expr: d.expr, Lambdas: true}.WalkExpr(t.Cond)
		}
	}
	v := ast.Visitor{Expr: d.expr, Stmt: d.stmt, Lambdas: true}
	v.WalkExpr(fn.BaseCall)
	v.WalkBlock(fn.Body)
	d.printf("end %s\n", fn.Name)
}

func (d *dumper) clauses(kind string, cs []ast.Clause) {
	v := ast.Visitor{Expr: d.expr, Lambdas: true}
	for _, c := range cs {
		d.printf("%s %q\n", kind, c.Text)
		v.WalkExpr(c.Cond)
	}
}

func (d *dumper) stmt(s *ast.Stmt) bool {
	d.printf("s %s", s.Kind)
	switch data := s.Data.(type) {
	case ast.LetData:
		d.printf(" sym=%d", data.Sym)
	case ast.JumpData:
		d.printf(" level=%d", data.Level)
	case ast.LabelData:
		d.printf(" label=%d", data.Label)
	case ast.AssertData:
		d.printf(" %q assume=%t", data.Clause.Text, data.Assume)
	}
	d.printf("\n")
	return true
}

func (d *dumper) expr(e *ast.Expr) bool {
	d.printf("e %s %s", e.Kind, d.typ(e.Type))
	switch data := e.Data.(type) {
	case ast.LiteralData:
		d.printf(" lit=%d:%d:%d:%g:%t:%q", data.Kind, data.IntValue, data.UintValue, data.FloatValue, data.BoolValue, data.StringValue)
	case ast.LocalData:
		d.printf(" sym=%d", data.Sym)
	case ast.FieldData:
		d.printf(" %s.%s", d.typ(data.Owner), data.Name)
	case ast.UnaryData:
		d.printf(" %s lifted=%t", data.Op, data.Lifted)
	case ast.BinaryData:
		d.printf(" %s lifted=%t", data.Op, data.Lifted)
	case ast.CallData:
		d.printf(" %s.%s virtual=%t base=%t", d.typ(data.Owner), data.Method, data.Virtual, data.Base)
	case ast.CastData:
		d.printf(" %s", data.Kind)
	case ast.QuantifierData:
		d.printf(" %s var=%d", data.Op, data.Var)
	case ast.LambdaData:
		if data.Func != nil {
			d.printf(" params=%d", d.count(len(data.Func.Params)))
		}
	}
	d.printf("\n")
	return true
}
