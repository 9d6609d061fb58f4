package ast

import (
	"fmt"

	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Builder constructs typed trees. The front end is outside this module, so
// samples, tests and synthesized procedures are all assembled through it.
type Builder struct {
	Types *types.Interner
	Syms  *symbols.Table
	B     types.Builtins
}

// NewBuilder returns a builder over the given interner and symbol table.
func NewBuilder(in *types.Interner, syms *symbols.Table) *Builder {
	return &Builder{Types: in, Syms: syms, B: in.Builtins()}
}

// Symbols -------------------------------------------------------------------

// Local allocates a local variable symbol.
func (b *Builder) Local(name string, ty types.TypeID) symbols.SymbolID {
	return b.Syms.New(symbols.Symbol{Name: name, Kind: symbols.SymbolLocal, Type: ty})
}

// Temp allocates a compiler-introduced variable symbol.
func (b *Builder) Temp(name string, ty types.TypeID) symbols.SymbolID {
	return b.Syms.New(symbols.Symbol{Name: name, Kind: symbols.SymbolTemp, Type: ty})
}

// Param allocates a parameter.
func (b *Builder) Param(name string, ty types.TypeID) Param {
	sym := b.Syms.New(symbols.Symbol{Name: name, Kind: symbols.SymbolParam, Type: ty})
	return Param{Sym: sym, Name: name, Type: ty}
}

// NonNullParam allocates a reference parameter that forbids null.
func (b *Builder) NonNullParam(name string, ty types.TypeID) Param {
	p := b.Param(name, ty)
	p.NonNull = true
	return p
}

// Label allocates a goto label symbol.
func (b *Builder) Label(name string) symbols.SymbolID {
	return b.Syms.New(symbols.Symbol{Name: name, Kind: symbols.SymbolLabel})
}

func (b *Builder) symType(sym symbols.SymbolID) types.TypeID {
	s, ok := b.Syms.Get(sym)
	if !ok {
		panic(fmt.Errorf("ast: unknown symbol %d", sym))
	}
	return s.Type
}

// Declarations --------------------------------------------------------------

// Class registers a nominal type and returns an empty declaration for it.
func (b *Builder) Class(name string, kind types.Kind, flags types.ClassFlags) *TypeDecl {
	id := b.Types.RegisterClass(name, kind, flags)
	return &TypeDecl{Name: name, Type: id}
}

// Field adds an instance field to decl.
func (b *Builder) Field(decl *TypeDecl, name string, ty types.TypeID) {
	b.Types.AddField(decl.Type, types.Field{Name: name, Type: ty})
}

// StaticField adds a static field to decl.
func (b *Builder) StaticField(decl *TypeDecl, name string, ty types.TypeID) {
	b.Types.AddField(decl.Type, types.Field{Name: name, Type: ty, Static: true})
}

// Method declares a method on decl and registers its signature.
func (b *Builder) Method(decl *TypeDecl, name string, result types.TypeID, params []Param, body *Block, flags FuncFlags) *Func {
	fn := &Func{
		Name:   name,
		Owner:  decl.Type,
		Params: params,
		Result: result,
		Body:   body,
		Scope:  paramScope(params),
		Flags:  flags,
	}
	if body != nil && ContainsYield(body) {
		fn.Flags |= FuncGenerator
	}
	sig := types.Method{Name: name, Result: result, Static: flags&FuncStatic != 0, Virtual: flags&FuncVirtual != 0}
	for _, p := range params {
		sig.Params = append(sig.Params, p.Type)
	}
	b.Types.AddMethod(decl.Type, sig)
	decl.Methods = append(decl.Methods, fn)
	return fn
}

// Ctor declares a constructor on decl.
func (b *Builder) Ctor(decl *TypeDecl, params []Param, body *Block, flags FuncFlags) *Func {
	return b.Method(decl, ".ctor", b.B.Void, params, body, flags|FuncCtor)
}

func paramScope(params []Param) *Scope {
	s := &Scope{}
	for _, p := range params {
		s.Locals = append(s.Locals, p.Sym)
	}
	return s
}

// Blocks ----------------------------------------------------------------------

// Block wraps statements in a block whose scope declares every let, using
// and fixed variable introduced directly by them.
func (b *Builder) Block(stmts ...Stmt) *Block {
	blk := &Block{Stmts: stmts, Scope: &Scope{}}
	for _, s := range stmts {
		switch d := s.Data.(type) {
		case LetData:
			blk.Scope.Locals = append(blk.Scope.Locals, d.Sym)
		case UsingData:
			if d.Var.IsValid() {
				blk.Scope.Locals = append(blk.Scope.Locals, d.Var)
			}
		case FixedData:
			blk.Scope.Locals = append(blk.Scope.Locals, d.Var)
		}
	}
	return blk
}

func declareIn(blk *Block, sym symbols.SymbolID) *Block {
	if blk == nil {
		blk = &Block{}
	}
	if blk.Scope == nil {
		blk.Scope = &Scope{}
	}
	if sym.IsValid() && !blk.Scope.Declares(sym) {
		blk.Scope.Locals = append(blk.Scope.Locals, sym)
	}
	return blk
}

// Expressions ---------------------------------------------------------------

func (b *Builder) Int(v int64) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.Int, Data: LiteralData{Kind: LiteralInt, IntValue: v}}
}

func (b *Builder) Long(v int64) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.Long, Data: LiteralData{Kind: LiteralInt, IntValue: v}}
}

func (b *Builder) Uint(v uint64) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.Uint, Data: LiteralData{Kind: LiteralUint, UintValue: v}}
}

func (b *Builder) Double(v float64) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.Double, Data: LiteralData{Kind: LiteralFloat, FloatValue: v}}
}

func (b *Builder) Bool(v bool) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.Bool, Data: LiteralData{Kind: LiteralBool, BoolValue: v}}
}

func (b *Builder) Char(r rune) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.Char, Data: LiteralData{Kind: LiteralChar, StringValue: string(r)}}
}

func (b *Builder) Str(s string) *Expr {
	return &Expr{Kind: ExprLiteral, Type: b.B.String, Data: LiteralData{Kind: LiteralString, StringValue: s}}
}

// Null is a null literal of type ty (the null type when ty is NoTypeID).
func (b *Builder) Null(ty types.TypeID) *Expr {
	if ty == types.NoTypeID {
		ty = b.B.Null
	}
	return &Expr{Kind: ExprLiteral, Type: ty, Data: LiteralData{Kind: LiteralNull}}
}

// Ref reads a local or parameter.
func (b *Builder) Ref(sym symbols.SymbolID) *Expr {
	return &Expr{Kind: ExprLocal, Type: b.symType(sym), Data: LocalData{Sym: sym}}
}

// This reads the receiver of type ty.
func (b *Builder) This(ty types.TypeID) *Expr {
	return &Expr{Kind: ExprThis, Type: ty, Data: ThisData{}}
}

// Fld reads field name of obj.
func (b *Builder) Fld(obj *Expr, name string) *Expr {
	f, owner, ok := b.Types.LookupField(obj.Type, name)
	if !ok {
		panic(fmt.Errorf("ast: %s has no field %q", b.Types.TypeString(obj.Type), name))
	}
	return &Expr{Kind: ExprField, Type: f.Type, Data: FieldData{Object: obj, Owner: owner, Name: name}}
}

// SFld reads a static field.
func (b *Builder) SFld(owner types.TypeID, name string) *Expr {
	f, decl, ok := b.Types.LookupField(owner, name)
	if !ok {
		panic(fmt.Errorf("ast: %s has no field %q", b.Types.TypeString(owner), name))
	}
	return &Expr{Kind: ExprField, Type: f.Type, Data: FieldData{Owner: decl, Name: name}}
}

// Index reads obj[idx] for arrays, strings and indexers.
func (b *Builder) Index(obj, idx *Expr) *Expr {
	var ty types.TypeID
	switch b.Types.Kind(obj.Type) {
	case types.KindArray:
		ty = b.Types.Elem(obj.Type)
	case types.KindString:
		ty = b.B.Char
	default:
		m, _, ok := b.Types.LookupMethod(obj.Type, "get_Item")
		if !ok {
			panic(fmt.Errorf("ast: %s is not indexable", b.Types.TypeString(obj.Type)))
		}
		ty = m.Result
	}
	return &Expr{Kind: ExprIndex, Type: ty, Data: IndexData{Object: obj, Index: idx}}
}

// Len reads the length of an array or string.
func (b *Builder) Len(obj *Expr) *Expr {
	return &Expr{Kind: ExprLength, Type: b.B.Int, Data: LengthData{Object: obj}}
}

// Unary applies op to x; operations over nullable operands are lifted.
func (b *Builder) Unary(op UnaryOp, x *Expr) *Expr {
	ty := x.Type
	if op == UnaryNot && !b.Types.IsNullable(ty) {
		ty = b.B.Bool
	}
	return &Expr{Kind: ExprUnary, Type: ty, Data: UnaryData{Op: op, Operand: x, Lifted: b.Types.IsNullable(x.Type)}}
}

func (b *Builder) Not(x *Expr) *Expr { return b.Unary(UnaryNot, x) }
func (b *Builder) Neg(x *Expr) *Expr { return b.Unary(UnaryNeg, x) }

// Bin applies op; comparisons and logical operators yield bool. Arithmetic
// over a nullable operand is lifted and yields the nullable type.
func (b *Builder) Bin(op BinaryOp, l, r *Expr) *Expr {
	lifted := b.Types.IsNullable(l.Type) || b.Types.IsNullable(r.Type)
	ty := l.Type
	switch {
	case op.IsComparison() || op.IsLogical():
		ty = b.B.Bool
	case op == BinCoalesce:
		ty = r.Type
		lifted = false
	case lifted && !b.Types.IsNullable(ty):
		ty = r.Type
	}
	return &Expr{Kind: ExprBinary, Type: ty, Data: BinaryData{Op: op, Left: l, Right: r, Lifted: lifted}}
}

func (b *Builder) Add(l, r *Expr) *Expr { return b.Bin(BinAdd, l, r) }
func (b *Builder) Sub(l, r *Expr) *Expr { return b.Bin(BinSub, l, r) }
func (b *Builder) Mul(l, r *Expr) *Expr { return b.Bin(BinMul, l, r) }
func (b *Builder) Div(l, r *Expr) *Expr { return b.Bin(BinDiv, l, r) }
func (b *Builder) Rem(l, r *Expr) *Expr { return b.Bin(BinRem, l, r) }
func (b *Builder) Eq(l, r *Expr) *Expr  { return b.Bin(BinEq, l, r) }
func (b *Builder) Ne(l, r *Expr) *Expr  { return b.Bin(BinNe, l, r) }
func (b *Builder) Lt(l, r *Expr) *Expr  { return b.Bin(BinLt, l, r) }
func (b *Builder) Le(l, r *Expr) *Expr  { return b.Bin(BinLe, l, r) }
func (b *Builder) Gt(l, r *Expr) *Expr  { return b.Bin(BinGt, l, r) }
func (b *Builder) Ge(l, r *Expr) *Expr  { return b.Bin(BinGe, l, r) }
func (b *Builder) And(l, r *Expr) *Expr { return b.Bin(BinLogAnd, l, r) }
func (b *Builder) Or(l, r *Expr) *Expr  { return b.Bin(BinLogOr, l, r) }

// Cond is the ternary c ? t : e.
func (b *Builder) Cond(c, t, e *Expr) *Expr {
	return &Expr{Kind: ExprCond, Type: t.Type, Data: CondData{Cond: c, Then: t, Else: e}}
}

func (b *Builder) methodResult(owner types.TypeID, name string) types.TypeID {
	m, _, ok := b.Types.LookupMethod(owner, name)
	if !ok {
		panic(fmt.Errorf("ast: %s has no method %q", b.Types.TypeString(owner), name))
	}
	return m.Result
}

// Call invokes an instance method virtually on recv.
func (b *Builder) Call(recv *Expr, method string, args ...*Expr) *Expr {
	return &Expr{
		Kind: ExprCall,
		Type: b.methodResult(recv.Type, method),
		Data: CallData{Receiver: recv, Owner: recv.Type, Method: method, Args: args, Virtual: true},
	}
}

// StaticCall invokes a static method of owner.
func (b *Builder) StaticCall(owner types.TypeID, method string, args ...*Expr) *Expr {
	return &Expr{
		Kind: ExprCall,
		Type: b.methodResult(owner, method),
		Data: CallData{Owner: owner, Method: method, Args: args},
	}
}

// BaseCall invokes owner's implementation of method on recv non-virtually.
func (b *Builder) BaseCall(recv *Expr, owner types.TypeID, method string, args ...*Expr) *Expr {
	return &Expr{
		Kind: ExprCall,
		Type: b.methodResult(owner, method),
		Data: CallData{Receiver: recv, Owner: owner, Method: method, Args: args, Base: true},
	}
}

// Invoke calls a delegate value.
func (b *Builder) Invoke(del *Expr, args ...*Expr) *Expr {
	info, ok := b.Types.DelegateInfo(del.Type)
	if !ok {
		panic(fmt.Errorf("ast: %s is not a delegate", b.Types.TypeString(del.Type)))
	}
	return &Expr{Kind: ExprInvoke, Type: info.Result, Data: InvokeData{Delegate: del, Args: args}}
}

// New allocates class and runs its constructor with args.
func (b *Builder) New(class types.TypeID, args ...*Expr) *Expr {
	return &Expr{Kind: ExprNew, Type: class, Data: NewData{Args: args}}
}

func (b *Builder) NewArray(elem types.TypeID, length *Expr) *Expr {
	return &Expr{Kind: ExprNewArray, Type: b.Types.Intern(types.MakeArray(elem)), Data: NewArrayData{Elem: elem, Length: length}}
}

func (b *Builder) ArrayLit(elem types.TypeID, elems ...*Expr) *Expr {
	return &Expr{Kind: ExprArrayLit, Type: b.Types.Intern(types.MakeArray(elem)), Data: ArrayLitData{Elem: elem, Elems: elems}}
}

// Cast converts x to ty using kind.
func (b *Builder) Cast(kind CastKind, x *Expr, ty types.TypeID) *Expr {
	return &Expr{Kind: ExprCast, Type: ty, Data: CastData{Kind: kind, Value: x}}
}

func (b *Builder) Is(x *Expr, target types.TypeID) *Expr {
	return &Expr{Kind: ExprIs, Type: b.B.Bool, Data: TypeTestData{Value: x, Target: target}}
}

func (b *Builder) As(x *Expr, target types.TypeID) *Expr {
	return &Expr{Kind: ExprAs, Type: target, Data: TypeTestData{Value: x, Target: target}}
}

func (b *Builder) HasValue(x *Expr) *Expr {
	return &Expr{Kind: ExprHasValue, Type: b.B.Bool, Data: HasValueData{Value: x}}
}

// Lambda builds an anonymous procedure value.
func (b *Builder) Lambda(params []Param, result types.TypeID, body *Block) *Expr {
	ptypes := make([]types.TypeID, 0, len(params))
	for _, p := range params {
		ptypes = append(ptypes, p.Type)
	}
	fn := &Func{Name: "lambda", Params: params, Result: result, Body: body, Scope: paramScope(params)}
	if body != nil && ContainsYield(body) {
		fn.Flags |= FuncGenerator
	}
	return &Expr{
		Kind: ExprLambda,
		Type: b.Types.RegisterDelegate(ptypes, result),
		Data: LambdaData{Func: fn},
	}
}

func (b *Builder) AddrOf(x *Expr) *Expr {
	return &Expr{Kind: ExprAddrOf, Type: b.Types.Intern(types.MakePointer(x.Type)), Data: AddrOfData{Value: x}}
}

func (b *Builder) Deref(p *Expr) *Expr {
	return &Expr{Kind: ExprDeref, Type: b.Types.Elem(p.Type), Data: DerefData{Pointer: p}}
}

func (b *Builder) Default(ty types.TypeID) *Expr {
	return &Expr{Kind: ExprDefault, Type: ty, Data: DefaultData{}}
}

func (b *Builder) Old(x *Expr) *Expr {
	return &Expr{Kind: ExprOld, Type: x.Type, Data: OldData{Value: x}}
}

func (b *Builder) Result(ty types.TypeID) *Expr {
	return &Expr{Kind: ExprResult, Type: ty, Data: ResultData{}}
}

// Quant builds a quantifier or aggregate over src binding v.
func (b *Builder) Quant(op QuantifierOp, v symbols.SymbolID, src, filter, body *Expr) *Expr {
	ty := b.B.Bool
	switch op {
	case QuantCount:
		ty = b.B.Int
	case QuantSum, QuantProduct, QuantMin, QuantMax:
		ty = body.Type
	}
	return &Expr{Kind: ExprQuantifier, Type: ty, Data: QuantifierData{Op: op, Var: v, Source: src, Filter: filter, Body: body}}
}

// Range is the half-open interval [lo, hi).
func (b *Builder) Range(lo, hi *Expr) *Expr {
	return &Expr{Kind: ExprRange, Type: b.Types.Intern(types.MakeEnumerable(b.B.Int)), Data: RangeData{Lo: lo, Hi: hi}}
}

// Query builds a comprehension with result type ty.
func (b *Builder) Query(ty types.TypeID, clauses ...QueryClause) *Expr {
	return &Expr{Kind: ExprQuery, Type: ty, Data: QueryData{Clauses: clauses}}
}

// Statements ------------------------------------------------------------------

func (b *Builder) Let(sym symbols.SymbolID, v *Expr) Stmt {
	return Stmt{Kind: StmtLet, Data: LetData{Sym: sym, Value: v}}
}

func (b *Builder) Do(e *Expr) Stmt {
	return Stmt{Kind: StmtExpr, Data: ExprStmtData{Expr: e}}
}

func (b *Builder) Assign(target, v *Expr) Stmt {
	return Stmt{Kind: StmtAssign, Data: AssignData{Target: target, Value: v}}
}

func (b *Builder) Return(v *Expr) Stmt {
	return Stmt{Kind: StmtReturn, Data: ReturnData{Value: v}}
}

func (b *Builder) Break() Stmt { return b.BreakN(0) }

// BreakN exits the level-th enclosing loop or switch.
func (b *Builder) BreakN(level int) Stmt {
	return Stmt{Kind: StmtExit, Data: JumpData{Level: level}}
}

func (b *Builder) Continue() Stmt { return b.ContinueN(0) }

func (b *Builder) ContinueN(level int) Stmt {
	return Stmt{Kind: StmtContinue, Data: JumpData{Level: level}}
}

func (b *Builder) If(c *Expr, then, els *Block) Stmt {
	return Stmt{Kind: StmtIf, Data: IfData{Cond: c, Then: then, Else: els}}
}

func (b *Builder) While(c *Expr, body *Block, invariants ...Clause) Stmt {
	return Stmt{Kind: StmtWhile, Data: LoopData{Cond: c, Body: body, Invariants: invariants}}
}

func (b *Builder) DoWhile(body *Block, c *Expr) Stmt {
	return Stmt{Kind: StmtDoWhile, Data: LoopData{Cond: c, Body: body}}
}

func (b *Builder) Repeat(body *Block, until *Expr) Stmt {
	return Stmt{Kind: StmtRepeat, Data: LoopData{Cond: until, Body: body}}
}

func (b *Builder) For(init []Stmt, c *Expr, post []Stmt, body *Block, invariants ...Clause) Stmt {
	return Stmt{Kind: StmtFor, Data: ForData{Init: init, Cond: c, Post: post, Body: body, Invariants: invariants}}
}

// ForEach iterates src binding v; v is declared in the body's scope.
func (b *Builder) ForEach(v symbols.SymbolID, src *Expr, body *Block) Stmt {
	return Stmt{Kind: StmtForEach, Data: ForEachData{Var: v, Source: src, Body: declareIn(body, v)}}
}

// ForEachIndexed also binds idx to the element position.
func (b *Builder) ForEachIndexed(v, idx symbols.SymbolID, src *Expr, body *Block) Stmt {
	body = declareIn(declareIn(body, v), idx)
	return Stmt{Kind: StmtForEach, Data: ForEachData{Var: v, Index: idx, Source: src, Body: body}}
}

func (b *Builder) Case(body *Block, labels ...*Expr) SwitchCase {
	return SwitchCase{Labels: labels, Body: body}
}

func (b *Builder) DefaultCase(body *Block) SwitchCase {
	return SwitchCase{IsDefault: true, Body: body}
}

func (b *Builder) Switch(v *Expr, cases ...SwitchCase) Stmt {
	return Stmt{Kind: StmtSwitch, Data: SwitchData{Value: v, Cases: cases}}
}

func (b *Builder) Nested(blk *Block) Stmt {
	return Stmt{Kind: StmtBlock, Data: BlockData{Block: blk}}
}

// Catch handles exceptions of ty, binding v (optional) in the handler scope.
func (b *Builder) Catch(ty types.TypeID, v symbols.SymbolID, body *Block) CatchClause {
	return CatchClause{Type: ty, Var: v, Body: declareIn(body, v)}
}

func (b *Builder) Try(body *Block, catches []CatchClause, finally *Block) Stmt {
	return Stmt{Kind: StmtTry, Data: TryData{Body: body, Catches: catches, Finally: finally}}
}

func (b *Builder) Throw(v *Expr) Stmt {
	return Stmt{Kind: StmtThrow, Data: ThrowData{Value: v}}
}

func (b *Builder) Rethrow() Stmt {
	return Stmt{Kind: StmtThrow, Data: ThrowData{}}
}

func (b *Builder) Lock(guard *Expr, body *Block) Stmt {
	return Stmt{Kind: StmtLock, Data: LockData{Guard: guard, Body: body}}
}

func (b *Builder) Using(v symbols.SymbolID, res *Expr, body *Block) Stmt {
	return Stmt{Kind: StmtUsing, Data: UsingData{Var: v, Resource: res, Body: body}}
}

func (b *Builder) Fixed(v symbols.SymbolID, init *Expr, body *Block) Stmt {
	return Stmt{Kind: StmtFixed, Data: FixedData{Var: v, Init: init, Body: body}}
}

func (b *Builder) Acquire(target *Expr, readOnly bool, cond *Expr, body *Block) Stmt {
	return Stmt{Kind: StmtAcquire, Data: AcquireData{Target: target, ReadOnly: readOnly, Condition: cond, Body: body}}
}

func (b *Builder) Yield(v *Expr) Stmt {
	return Stmt{Kind: StmtYield, Data: YieldData{Value: v}}
}

func (b *Builder) YieldBreak() Stmt {
	return Stmt{Kind: StmtYieldBreak, Data: YieldBreakData{}}
}

func (b *Builder) LabelAt(label symbols.SymbolID) Stmt {
	return Stmt{Kind: StmtLabel, Data: LabelData{Label: label}}
}

func (b *Builder) Goto(label symbols.SymbolID) Stmt {
	return Stmt{Kind: StmtGoto, Data: LabelData{Label: label}}
}

func (b *Builder) Assert(cond *Expr, text string) Stmt {
	return Stmt{Kind: StmtAssert, Data: AssertData{Clause: Clause{Cond: cond, Text: text}}}
}

func (b *Builder) Assume(cond *Expr, text string) Stmt {
	return Stmt{Kind: StmtAssert, Data: AssertData{Clause: Clause{Cond: cond, Text: text}, Assume: true}}
}

// Clause pairs a condition with its source text.
func (b *Builder) Clause(cond *Expr, text string) Clause {
	return Clause{Cond: cond, Text: text}
}
