package lower

import "github.com/hesam/SketchSharp-sub001/internal/lir"

type frameKind uint8

const (
	frameLoop frameKind = iota
	frameSwitch
	frameTry
	frameCatch
	frameFinally
)

// frame is one level of the jump-target stack.
type frame struct {
	kind frameKind
	brk  lir.BlockID
	cont lir.BlockID
	// catches is set on try frames protected by at least one catch.
	catches bool
	parent  *frame
}

// context is the traversal state threaded by value through the recursion.
// Pushing returns a new value, so returning from a recursive call restores
// the caller's state without explicit pops.
type context struct {
	frames *frame
	// env is the innermost closure environment live at this point.
	env *envInfo
	// dispose is the innermost try/finally enclosing this point inside a
	// generator body.
	dispose *disposeRecord
	// handler is set inside catch and finally bodies.
	handler bool
}

func (c context) push(f frame) context {
	f.parent = c.frames
	c.frames = &f
	return c
}

func (c context) withEnv(e *envInfo) context {
	c.env = e
	return c
}

func (c context) pushHandler(kind frameKind) context {
	c = c.push(frame{kind: kind, brk: lir.NoBlockID, cont: lir.NoBlockID})
	c.handler = true
	return c
}

func (c context) pushTry(catches bool) context {
	return c.push(frame{kind: frameTry, brk: lir.NoBlockID, cont: lir.NoBlockID, catches: catches})
}

func (c context) pushLoop(brk, cont lir.BlockID) context {
	return c.push(frame{kind: frameLoop, brk: brk, cont: cont})
}

func (c context) pushSwitch(brk lir.BlockID) context {
	return c.push(frame{kind: frameSwitch, brk: brk, cont: lir.NoBlockID})
}

// jumpTarget resolves exit (cont=false) or continue (cont=true) at the given
// nesting level. Crossing a try or catch level marks the jump as leaving a
// protected region; crossing a finally is never legal.
func (c context) jumpTarget(cont bool, level int) (lir.BlockID, lir.BranchFlags, error) {
	var flags lir.BranchFlags
	for f := c.frames; f != nil; f = f.parent {
		switch f.kind {
		case frameTry, frameCatch:
			flags |= lir.BranchLeave
		case frameFinally:
			return lir.NoBlockID, 0, internalErr("jump out of a finally body")
		case frameSwitch:
			if cont {
				continue
			}
			if level == 0 {
				return f.brk, flags, nil
			}
			level--
		case frameLoop:
			if level == 0 {
				if cont {
					return f.cont, flags, nil
				}
				return f.brk, flags, nil
			}
			level--
		}
	}
	if cont {
		return lir.NoBlockID, 0, malformed("continue outside a loop")
	}
	return lir.NoBlockID, 0, malformed("exit outside a loop or switch")
}

// returnFlags reports how a jump to the procedure's exit join is marked.
func (c context) returnFlags() (lir.BranchFlags, error) {
	var flags lir.BranchFlags
	for f := c.frames; f != nil; f = f.parent {
		switch f.kind {
		case frameTry, frameCatch:
			flags |= lir.BranchLeave
		case frameFinally:
			return 0, internalErr("return out of a finally body")
		}
	}
	return flags, nil
}

// regionPath lists the protected-region frames enclosing this point,
// innermost first.
func (c context) regionPath() []*frame {
	var out []*frame
	for f := c.frames; f != nil; f = f.parent {
		switch f.kind {
		case frameTry, frameCatch, frameFinally:
			out = append(out, f)
		}
	}
	return out
}

// inCatch reports whether a rethrow is legal here.
func (c context) inCatch() bool {
	for f := c.frames; f != nil; f = f.parent {
		switch f.kind {
		case frameCatch:
			return true
		case frameFinally:
			return false
		}
	}
	return false
}
