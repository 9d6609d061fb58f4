package lir

import (
	"fmt"

	"fortio.org/safecast"
)

func blockIDOf(n int) BlockID {
	id, err := safecast.Conv[int32](n)
	if err != nil {
		panic(fmt.Errorf("block id overflow: %w", err))
	}
	return BlockID(id)
}

// Reorder permutes f.Blocks into the given layout. order lists block ids
// in their final position; blocks it omits keep their relative order at
// the end. Handler bounds are block ids on input; an end bound of
// NoBlockID means the end of the procedure.
func Reorder(f *Func, order []BlockID) {
	n := len(f.Blocks)
	pos := make([]BlockID, n)
	for i := range pos {
		pos[i] = NoBlockID
	}
	layout := make([]BlockID, 0, n)
	for _, id := range order {
		if id < 0 || int(id) >= n || pos[id] != NoBlockID {
			continue
		}
		pos[id] = blockIDOf(len(layout))
		layout = append(layout, id)
	}
	for i := 0; i < n; i++ {
		if pos[i] == NoBlockID {
			pos[i] = blockIDOf(len(layout))
			layout = append(layout, BlockID(i))
		}
	}
	remap := func(id BlockID) BlockID {
		if id < 0 || int(id) >= n {
			return id
		}
		return pos[id]
	}
	end := func(id BlockID) BlockID {
		if id == NoBlockID {
			return blockIDOf(n)
		}
		return remap(id)
	}
	blocks := make([]Block, n)
	for newPos, old := range layout {
		bb := f.Blocks[old]
		bb.ID = BlockID(newPos)
		bb.Term.retarget(remap)
		blocks[newPos] = bb
	}
	f.Blocks = blocks
	f.Entry = remap(f.Entry)
	for i := range f.Handlers {
		h := &f.Handlers[i]
		h.TryStart = remap(h.TryStart)
		h.TryEnd = end(h.TryEnd)
		h.HandlerStart = remap(h.HandlerStart)
		h.HandlerEnd = end(h.HandlerEnd)
	}
}

// Reachable marks blocks reachable from the entry. A handler becomes
// reachable once any block of its protected range is.
func Reachable(f *Func) []bool {
	live := make([]bool, len(f.Blocks))
	if len(f.Blocks) == 0 {
		return live
	}
	var work []BlockID
	mark := func(id BlockID) {
		if id >= 0 && int(id) < len(live) && !live[id] {
			live[id] = true
			work = append(work, id)
		}
	}
	mark(f.Entry)
	for {
		for len(work) > 0 {
			id := work[len(work)-1]
			work = work[:len(work)-1]
			for _, succ := range f.Blocks[id].Term.Successors() {
				mark(succ)
			}
		}
		grew := false
		for i := range f.Handlers {
			h := &f.Handlers[i]
			if h.HandlerStart < 0 || int(h.HandlerStart) >= len(live) || live[h.HandlerStart] {
				continue
			}
			for b := h.TryStart; b < h.TryEnd && int(b) < len(live); b++ {
				if b >= 0 && live[b] {
					mark(h.HandlerStart)
					grew = true
					break
				}
			}
		}
		if !grew {
			return live
		}
	}
}

// Compact removes unreachable blocks, renumbers the rest densely in layout
// order, and drops handlers whose protected or handler range became empty.
func Compact(f *Func) {
	live := Reachable(f)
	n := len(f.Blocks)
	// before[i] counts live blocks positioned before i.
	before := make([]BlockID, n+1)
	for i := 0; i < n; i++ {
		before[i+1] = before[i]
		if live[i] {
			before[i+1]++
		}
	}
	bound := func(id BlockID) BlockID {
		switch {
		case id < 0:
			return 0
		case int(id) > n:
			return before[n]
		default:
			return before[id]
		}
	}
	blocks := make([]Block, 0, before[n])
	for i := 0; i < n; i++ {
		if !live[i] {
			continue
		}
		bb := f.Blocks[i]
		bb.ID = blockIDOf(len(blocks))
		bb.Term.retarget(bound)
		blocks = append(blocks, bb)
	}
	f.Blocks = blocks
	f.Entry = bound(f.Entry)
	handlers := f.Handlers[:0]
	for _, h := range f.Handlers {
		h.TryStart, h.TryEnd = bound(h.TryStart), bound(h.TryEnd)
		h.HandlerStart, h.HandlerEnd = bound(h.HandlerStart), bound(h.HandlerEnd)
		if h.TryStart >= h.TryEnd || h.HandlerStart >= h.HandlerEnd {
			continue
		}
		handlers = append(handlers, h)
	}
	f.Handlers = handlers
}
