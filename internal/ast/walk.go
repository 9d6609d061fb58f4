package ast

// Visitor receives expressions and statements in pre-order. Returning false
// from Expr skips the expression's children; nested procedure bodies are
// visited only when Lambdas is set.
type Visitor struct {
	Expr    func(e *Expr) bool
	Stmt    func(s *Stmt) bool
	Lambdas bool
}

// WalkExpr visits e and its sub-expressions.
func (v Visitor) WalkExpr(e *Expr) {
	if e == nil {
		return
	}
	if v.Expr != nil && !v.Expr(e) {
		return
	}
	switch d := e.Data.(type) {
	case FieldData:
		v.WalkExpr(d.Object)
	case IndexData:
		v.WalkExpr(d.Object)
		v.WalkExpr(d.Index)
	case LengthData:
		v.WalkExpr(d.Object)
	case UnaryData:
		v.WalkExpr(d.Operand)
	case BinaryData:
		v.WalkExpr(d.Left)
		v.WalkExpr(d.Right)
	case CondData:
		v.WalkExpr(d.Cond)
		v.WalkExpr(d.Then)
		v.WalkExpr(d.Else)
	case CallData:
		v.WalkExpr(d.Receiver)
		v.walkExprs(d.Args)
	case InvokeData:
		v.WalkExpr(d.Delegate)
		v.walkExprs(d.Args)
	case NewData:
		v.walkExprs(d.Args)
	case NewArrayData:
		v.WalkExpr(d.Length)
	case ArrayLitData:
		v.walkExprs(d.Elems)
	case CastData:
		v.WalkExpr(d.Value)
	case TypeTestData:
		v.WalkExpr(d.Value)
	case HasValueData:
		v.WalkExpr(d.Value)
	case LambdaData:
		if v.Lambdas && d.Func != nil {
			v.WalkBlock(d.Func.Body)
		}
	case AddrOfData:
		v.WalkExpr(d.Value)
	case DerefData:
		v.WalkExpr(d.Pointer)
	case OldData:
		v.WalkExpr(d.Value)
	case QuantifierData:
		v.WalkExpr(d.Source)
		v.WalkExpr(d.Filter)
		v.WalkExpr(d.Body)
	case RangeData:
		v.WalkExpr(d.Lo)
		v.WalkExpr(d.Hi)
	case QueryData:
		for i := range d.Clauses {
			v.walkClause(&d.Clauses[i])
		}
	}
}

func (v Visitor) walkExprs(es []*Expr) {
	for _, e := range es {
		v.WalkExpr(e)
	}
}

func (v Visitor) walkClause(c *QueryClause) {
	v.WalkExpr(c.Source)
	v.WalkExpr(c.Cond)
	for _, k := range c.Keys {
		v.WalkExpr(k.Key)
	}
	for _, k := range c.GroupKeys {
		v.WalkExpr(k.Expr)
	}
	v.WalkExpr(c.Element)
	for _, p := range c.Fields {
		v.WalkExpr(p.Value)
	}
	v.WalkExpr(c.Value)
	v.WalkExpr(c.Count)
}

// WalkBlock visits every statement of b.
func (v Visitor) WalkBlock(b *Block) {
	if b == nil {
		return
	}
	for i := range b.Stmts {
		v.WalkStmt(&b.Stmts[i])
	}
}

func (v Visitor) walkClauses(cs []Clause) {
	for _, c := range cs {
		v.WalkExpr(c.Cond)
	}
}

// WalkStmt visits s, its expressions and nested blocks.
func (v Visitor) WalkStmt(s *Stmt) {
	if s == nil {
		return
	}
	if v.Stmt != nil && !v.Stmt(s) {
		return
	}
	switch d := s.Data.(type) {
	case LetData:
		v.WalkExpr(d.Value)
	case ExprStmtData:
		v.WalkExpr(d.Expr)
	case AssignData:
		v.WalkExpr(d.Target)
		v.WalkExpr(d.Value)
	case ReturnData:
		v.WalkExpr(d.Value)
	case IfData:
		v.WalkExpr(d.Cond)
		v.WalkBlock(d.Then)
		v.WalkBlock(d.Else)
	case LoopData:
		v.walkClauses(d.Invariants)
		v.WalkExpr(d.Cond)
		v.WalkBlock(d.Body)
	case ForData:
		for i := range d.Init {
			v.WalkStmt(&d.Init[i])
		}
		v.walkClauses(d.Invariants)
		v.WalkExpr(d.Cond)
		for i := range d.Post {
			v.WalkStmt(&d.Post[i])
		}
		v.WalkBlock(d.Body)
	case ForEachData:
		v.WalkExpr(d.Source)
		v.walkClauses(d.Invariants)
		v.WalkBlock(d.Body)
	case SwitchData:
		v.WalkExpr(d.Value)
		for _, c := range d.Cases {
			v.walkExprs(c.Labels)
			v.WalkBlock(c.Body)
		}
	case BlockData:
		v.WalkBlock(d.Block)
	case TryData:
		v.WalkBlock(d.Body)
		for _, c := range d.Catches {
			v.WalkExpr(c.Target)
			v.WalkBlock(c.Body)
		}
		v.WalkBlock(d.Finally)
	case ThrowData:
		v.WalkExpr(d.Value)
	case LockData:
		v.WalkExpr(d.Guard)
		v.WalkBlock(d.Body)
	case UsingData:
		v.WalkExpr(d.Resource)
		v.WalkBlock(d.Body)
	case FixedData:
		v.WalkExpr(d.Init)
		v.WalkBlock(d.Body)
	case AcquireData:
		v.WalkExpr(d.Target)
		v.WalkExpr(d.Condition)
		v.WalkBlock(d.Body)
	case YieldData:
		v.WalkExpr(d.Value)
	case AssertData:
		v.WalkExpr(d.Clause.Cond)
	}
}

// ContainsYield reports whether b yields outside nested procedures.
func ContainsYield(b *Block) bool {
	found := false
	Visitor{Stmt: func(s *Stmt) bool {
		if s.Kind == StmtYield || s.Kind == StmtYieldBreak {
			found = true
		}
		return !found
	}}.WalkBlock(b)
	return found
}
