package lower

import (
	"github.com/hesam/SketchSharp-sub001/internal/ast"
	"github.com/hesam/SketchSharp-sub001/internal/lir"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

func (l *funcLowerer) lowerLock(ctx context, d ast.LockData) error {
	if d.Guard == nil {
		return malformed("lock without a guard")
	}
	g, err := l.lowerExpr(ctx, d.Guard)
	if err != nil {
		return err
	}
	if !l.types.IsReference(g.Type) {
		return malformed("lock on value type %s", l.types.TypeString(g.Type))
	}
	t := lir.Copy(l.newTempFrom(g, "lock"), g.Type)
	l.callIntrinsic(lir.IntrinsicMonitorEnter, l.b.Void, t)
	return l.tryFinally(ctx, func(ctx context) error {
		return l.lowerBlock(ctx, d.Body)
	}, func(fl *funcLowerer, _ context) error {
		fl.callIntrinsic(lir.IntrinsicMonitorExit, fl.b.Void, t)
		return nil
	})
}

// lowerUsing disposes the resource when the body is left. Value types are
// disposed through their address and cannot be null.
func (l *funcLowerer) lowerUsing(ctx context, d ast.UsingData) error {
	if d.Resource == nil {
		return malformed("using without a resource")
	}
	res, err := l.lowerExpr(ctx, d.Resource)
	if err != nil {
		return err
	}
	ty := res.Type
	if !l.types.IsDisposable(ty) {
		return malformed("using on non-disposable %s", l.types.TypeString(ty))
	}
	t := l.newTempFrom(res, "res")
	if d.Var.IsValid() {
		place, vty, err := l.varPlace(d.Var)
		if err != nil {
			return err
		}
		l.assignOp(place, l.coerce(lir.Copy(t, ty), vty))
	}
	return l.tryFinally(ctx, func(ctx context) error {
		return l.lowerBlock(ctx, d.Body)
	}, func(fl *funcLowerer, _ context) error {
		if fl.types.IsValueType(ty) {
			owner := ty
			if _, o, ok := fl.types.LookupMethod(ty, "Dispose"); ok {
				owner = o
			}
			recv := lir.Operand{Kind: lir.OperandAddrOf, Type: fl.types.Intern(types.MakePointer(ty)), Place: t}
			fl.callMethod(fl.b.Void, owner, "Dispose", false, &recv)
			return nil
		}
		fl.disposeIfNotNull(lir.Copy(t, ty))
		return nil
	})
}

// lowerFixed pins the object behind the pointer for the duration of the
// body and unpins it in a finally region.
func (l *funcLowerer) lowerFixed(ctx context, d ast.FixedData) error {
	if l.iter != nil {
		return malformed("fixed inside an iterator body")
	}
	if d.Init == nil || !d.Var.IsValid() {
		return malformed("fixed without an initializer")
	}
	dst, ptrTy, err := l.varPlace(d.Var)
	if err != nil {
		return err
	}
	if l.types.Kind(ptrTy) != types.KindPointer {
		return malformed("fixed variable of non-pointer type %s", l.types.TypeString(ptrTy))
	}
	var pin lir.Place
	var pinTy types.TypeID
	switch {
	case l.types.Kind(d.Init.Type) == types.KindString:
		s, err := l.lowerExpr(ctx, d.Init)
		if err != nil {
			return err
		}
		pinTy = s.Type
		pin = l.pinnedLocal(pinTy)
		l.assignOp(pin, s)
		l.nullGuardedPointer(dst, ptrTy, lir.Copy(pin, pinTy), false, func() {
			off := l.callIntrinsic(lir.IntrinsicOffsetToStringData, l.b.Int)
			l.assign(dst, lir.RValue{Kind: lir.RValuePtrAdd, Binary: lir.BinaryOp{Left: lir.Copy(pin, pinTy), Right: off}})
		})
	case isArrayElementAddr(l.types, d.Init):
		idx := d.Init.Data.(ast.AddrOfData).Value.Data.(ast.IndexData)
		arr, err := l.lowerExpr(ctx, idx.Object)
		if err != nil {
			return err
		}
		pinTy = arr.Type
		pin = l.pinnedLocal(pinTy)
		l.assignOp(pin, arr)
		i, err := l.lowerExpr(ctx, idx.Index)
		if err != nil {
			return err
		}
		l.nullGuardedPointer(dst, ptrTy, lir.Copy(pin, pinTy), true, func() {
			l.assignOp(dst, lir.Operand{Kind: lir.OperandAddrOf, Type: ptrTy, Place: pin.WithIndex(i)})
		})
	default:
		p, err := l.lowerExpr(ctx, d.Init)
		if err != nil {
			return err
		}
		pinTy = p.Type
		pin = l.pinnedLocal(pinTy)
		l.assignOp(pin, p)
		l.assignOp(dst, l.coerce(lir.Copy(pin, pinTy), ptrTy))
	}
	return l.tryFinally(ctx, func(ctx context) error {
		return l.lowerBlock(ctx, d.Body)
	}, func(fl *funcLowerer, _ context) error {
		fl.assignOp(pin, lir.NullConst(pinTy))
		return nil
	})
}

func (l *funcLowerer) pinnedLocal(ty types.TypeID) lir.Place {
	return lir.LocalPlace(l.addLocal("pin$"+l.names.next(), ty, lir.LocalFlagPinned|lir.LocalFlagTemp, symbols.NoSymbolID))
}

// nullGuardedPointer stores a null pointer in dst when obj is null (or,
// with empty set, has no elements) and runs set otherwise.
func (l *funcLowerer) nullGuardedPointer(dst lir.Place, ptrTy types.TypeID, obj lir.Operand, empty bool, set func()) {
	nullBlk, join := l.newBlock(), l.newBlock()
	l.branchIfNull(obj, nullBlk)
	if empty {
		n := l.rvalueTemp(l.b.Int, lir.RValue{Kind: lir.RValueLen, Use: obj}, "len")
		l.branchTo(l.eqCond(n, l.intConst(0)), nullBlk, 0)
	}
	set()
	l.gotoBlock(join, 0)
	l.startBlock(nullBlk)
	l.assignOp(dst, lir.NullConst(ptrTy))
	l.gotoBlock(join, 0)
	l.startBlock(join)
}

func isArrayElementAddr(in *types.Interner, e *ast.Expr) bool {
	a, ok := e.Data.(ast.AddrOfData)
	if !ok || a.Value == nil {
		return false
	}
	idx, ok := a.Value.Data.(ast.IndexData)
	return ok && idx.Object != nil && in.Kind(idx.Object.Type) == types.KindArray
}

func (l *funcLowerer) lowerAcquire(ctx context, d ast.AcquireData) error {
	if d.Target == nil {
		return malformed("acquire without a target")
	}
	v, err := l.lowerExpr(ctx, d.Target)
	if err != nil {
		return err
	}
	if !l.types.IsReference(v.Type) {
		return malformed("acquire on value type %s", l.types.TypeString(v.Type))
	}
	t := lir.Copy(l.newTempFrom(v, "acq"), v.Type)
	cond := lir.NullConst(l.b.Object)
	if d.Condition != nil {
		if cond, err = l.lowerExpr(ctx, d.Condition); err != nil {
			return err
		}
	}
	acquire, release := lir.IntrinsicAcquireForWriting, lir.IntrinsicReleaseForWriting
	if d.ReadOnly {
		acquire, release = lir.IntrinsicAcquireForReading, lir.IntrinsicReleaseForReading
	}
	l.callIntrinsic(acquire, l.b.Void, t, cond)
	return l.tryFinally(ctx, func(ctx context) error {
		return l.lowerBlock(ctx, d.Body)
	}, func(fl *funcLowerer, _ context) error {
		fl.callIntrinsic(release, fl.b.Void, t)
		return nil
	})
}

// newTempFrom copies v into a fresh temporary, even when v already reads
// one, so later writes to the source cannot change the guarded value.
func (l *funcLowerer) newTempFrom(v lir.Operand, hint string) lir.Place {
	t := l.newTemp(v.Type, hint)
	l.assignOp(t, v)
	return t
}
