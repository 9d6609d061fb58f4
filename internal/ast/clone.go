package ast

import "slices"

// Cloner deep-copies trees. Subst, when set, may return a replacement for
// an expression; the replacement is used as is, without cloning.
type Cloner struct {
	Subst func(e *Expr) *Expr
}

// Expr returns a deep copy of e.
func (c Cloner) Expr(e *Expr) *Expr {
	if e == nil {
		return nil
	}
	if c.Subst != nil {
		if r := c.Subst(e); r != nil {
			return r
		}
	}
	out := &Expr{Kind: e.Kind, Type: e.Type, Span: e.Span}
	switch d := e.Data.(type) {
	case FieldData:
		d.Object = c.Expr(d.Object)
		out.Data = d
	case IndexData:
		d.Object = c.Expr(d.Object)
		d.Index = c.Expr(d.Index)
		out.Data = d
	case LengthData:
		d.Object = c.Expr(d.Object)
		out.Data = d
	case UnaryData:
		d.Operand = c.Expr(d.Operand)
		out.Data = d
	case BinaryData:
		d.Left = c.Expr(d.Left)
		d.Right = c.Expr(d.Right)
		out.Data = d
	case CondData:
		d.Cond = c.Expr(d.Cond)
		d.Then = c.Expr(d.Then)
		d.Else = c.Expr(d.Else)
		out.Data = d
	case CallData:
		d.Receiver = c.Expr(d.Receiver)
		d.Args = c.exprs(d.Args)
		out.Data = d
	case InvokeData:
		d.Delegate = c.Expr(d.Delegate)
		d.Args = c.exprs(d.Args)
		out.Data = d
	case NewData:
		d.Args = c.exprs(d.Args)
		out.Data = d
	case NewArrayData:
		d.Length = c.Expr(d.Length)
		out.Data = d
	case ArrayLitData:
		d.Elems = c.exprs(d.Elems)
		out.Data = d
	case CastData:
		d.Value = c.Expr(d.Value)
		out.Data = d
	case TypeTestData:
		d.Value = c.Expr(d.Value)
		out.Data = d
	case HasValueData:
		d.Value = c.Expr(d.Value)
		out.Data = d
	case LambdaData:
		d.Func = c.Func(d.Func)
		out.Data = d
	case AddrOfData:
		d.Value = c.Expr(d.Value)
		out.Data = d
	case DerefData:
		d.Pointer = c.Expr(d.Pointer)
		out.Data = d
	case OldData:
		d.Value = c.Expr(d.Value)
		out.Data = d
	case QuantifierData:
		d.Source = c.Expr(d.Source)
		d.Filter = c.Expr(d.Filter)
		d.Body = c.Expr(d.Body)
		out.Data = d
	case RangeData:
		d.Lo = c.Expr(d.Lo)
		d.Hi = c.Expr(d.Hi)
		out.Data = d
	case QueryData:
		clauses := make([]QueryClause, len(d.Clauses))
		for i, cl := range d.Clauses {
			clauses[i] = c.clause(cl)
		}
		out.Data = QueryData{Clauses: clauses}
	default:
		out.Data = e.Data
	}
	return out
}

func (c Cloner) exprs(es []*Expr) []*Expr {
	if es == nil {
		return nil
	}
	out := make([]*Expr, len(es))
	for i, e := range es {
		out[i] = c.Expr(e)
	}
	return out
}

func (c Cloner) clause(cl QueryClause) QueryClause {
	cl.Source = c.Expr(cl.Source)
	cl.Cond = c.Expr(cl.Cond)
	if cl.Keys != nil {
		keys := make([]OrderKey, len(cl.Keys))
		for i, k := range cl.Keys {
			keys[i] = OrderKey{Key: c.Expr(k.Key), Descending: k.Descending}
		}
		cl.Keys = keys
	}
	if cl.GroupKeys != nil {
		keys := make([]GroupKey, len(cl.GroupKeys))
		for i, k := range cl.GroupKeys {
			keys[i] = GroupKey{Sym: k.Sym, Expr: c.Expr(k.Expr)}
		}
		cl.GroupKeys = keys
	}
	cl.Element = c.Expr(cl.Element)
	if cl.Fields != nil {
		fields := make([]Projection, len(cl.Fields))
		for i, p := range cl.Fields {
			fields[i] = Projection{Name: p.Name, Value: c.Expr(p.Value)}
		}
		cl.Fields = fields
	}
	cl.Value = c.Expr(cl.Value)
	cl.Count = c.Expr(cl.Count)
	return cl
}

func (c Cloner) clauses(cs []Clause) []Clause {
	if cs == nil {
		return nil
	}
	out := make([]Clause, len(cs))
	for i, cl := range cs {
		cl.Cond = c.Expr(cl.Cond)
		out[i] = cl
	}
	return out
}

// Block returns a deep copy of b. Scopes are copied shallowly so the
// copy declares the same symbols.
func (c Cloner) Block(b *Block) *Block {
	if b == nil {
		return nil
	}
	out := &Block{Span: b.Span, Stmts: c.stmts(b.Stmts)}
	if b.Scope != nil {
		scope := *b.Scope
		scope.Locals = slices.Clone(b.Scope.Locals)
		out.Scope = &scope
	}
	return out
}

func (c Cloner) stmts(ss []Stmt) []Stmt {
	if ss == nil {
		return nil
	}
	out := make([]Stmt, len(ss))
	for i := range ss {
		out[i] = c.Stmt(ss[i])
	}
	return out
}

// Stmt returns a deep copy of s.
func (c Cloner) Stmt(s Stmt) Stmt {
	switch d := s.Data.(type) {
	case LetData:
		d.Value = c.Expr(d.Value)
		s.Data = d
	case ExprStmtData:
		d.Expr = c.Expr(d.Expr)
		s.Data = d
	case AssignData:
		d.Target = c.Expr(d.Target)
		d.Value = c.Expr(d.Value)
		s.Data = d
	case ReturnData:
		d.Value = c.Expr(d.Value)
		s.Data = d
	case IfData:
		d.Cond = c.Expr(d.Cond)
		d.Then = c.Block(d.Then)
		d.Else = c.Block(d.Else)
		s.Data = d
	case LoopData:
		d.Cond = c.Expr(d.Cond)
		d.Body = c.Block(d.Body)
		d.Invariants = c.clauses(d.Invariants)
		s.Data = d
	case ForData:
		d.Init = c.stmts(d.Init)
		d.Cond = c.Expr(d.Cond)
		d.Post = c.stmts(d.Post)
		d.Body = c.Block(d.Body)
		d.Invariants = c.clauses(d.Invariants)
		s.Data = d
	case ForEachData:
		d.Source = c.Expr(d.Source)
		d.Body = c.Block(d.Body)
		d.Invariants = c.clauses(d.Invariants)
		s.Data = d
	case SwitchData:
		d.Value = c.Expr(d.Value)
		cases := make([]SwitchCase, len(d.Cases))
		for i, sc := range d.Cases {
			sc.Labels = c.exprs(sc.Labels)
			sc.Body = c.Block(sc.Body)
			cases[i] = sc
		}
		d.Cases = cases
		s.Data = d
	case BlockData:
		d.Block = c.Block(d.Block)
		s.Data = d
	case TryData:
		d.Body = c.Block(d.Body)
		catches := make([]CatchClause, len(d.Catches))
		for i, cc := range d.Catches {
			cc.Target = c.Expr(cc.Target)
			cc.Body = c.Block(cc.Body)
			catches[i] = cc
		}
		d.Catches = catches
		d.Finally = c.Block(d.Finally)
		s.Data = d
	case ThrowData:
		d.Value = c.Expr(d.Value)
		s.Data = d
	case LockData:
		d.Guard = c.Expr(d.Guard)
		d.Body = c.Block(d.Body)
		s.Data = d
	case UsingData:
		d.Resource = c.Expr(d.Resource)
		d.Body = c.Block(d.Body)
		s.Data = d
	case FixedData:
		d.Init = c.Expr(d.Init)
		d.Body = c.Block(d.Body)
		s.Data = d
	case AcquireData:
		d.Target = c.Expr(d.Target)
		d.Condition = c.Expr(d.Condition)
		d.Body = c.Block(d.Body)
		s.Data = d
	case YieldData:
		d.Value = c.Expr(d.Value)
		s.Data = d
	case AssertData:
		d.Clause.Cond = c.Expr(d.Clause.Cond)
		s.Data = d
	}
	return s
}

// Func returns a copy of fn with a deep-copied body and contract.
func (c Cloner) Func(fn *Func) *Func {
	if fn == nil {
		return nil
	}
	out := *fn
	out.Params = append([]Param(nil), fn.Params...)
	out.Body = c.Block(fn.Body)
	out.BaseCall = c.Expr(fn.BaseCall)
	if fn.Contract != nil {
		ct := Contract{
			Requires: c.clauses(fn.Contract.Requires),
			Ensures:  c.clauses(fn.Contract.Ensures),
		}
		for _, t := range fn.Contract.Throws {
			t.Cond = c.Expr(t.Cond)
			ct.Throws = append(ct.Throws, t)
		}
		out.Contract = &ct
	}
	return &out
}
