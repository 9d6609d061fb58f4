package symbols

import (
	"sync"
	"testing"
)

func TestTableAllocatesFromOne(t *testing.T) {
	tbl := NewTable()
	id := tbl.New(Symbol{Name: "x", Kind: SymbolLocal})
	if id != 1 {
		t.Fatalf("first symbol id = %d, want 1", id)
	}
	sym, ok := tbl.Get(id)
	if !ok || sym.Name != "x" || sym.Kind != SymbolLocal {
		t.Fatalf("Get = %+v %v", sym, ok)
	}
	if _, ok := tbl.Get(NoSymbolID); ok {
		t.Fatalf("NoSymbolID must not resolve")
	}
	if tbl.Name(99) != "sym#99" {
		t.Fatalf("unexpected placeholder name")
	}
}

func TestTableConcurrentNew(t *testing.T) {
	tbl := NewTable()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tbl.New(Symbol{Name: "t", Kind: SymbolTemp})
			}
		}()
	}
	wg.Wait()
	if tbl.Len() != 401 {
		t.Fatalf("Len = %d, want 401", tbl.Len())
	}
}
