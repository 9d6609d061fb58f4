package symbols

import (
	"fmt"
	"sync"

	"fortio.org/safecast"
)

// Table owns every symbol of a compilation. Lowering allocates fresh symbols
// for synthesized variables, possibly from several goroutines at once.
type Table struct {
	mu   sync.RWMutex
	syms []Symbol
}

// NewTable creates an empty table with slot 0 reserved.
func NewTable() *Table {
	return &Table{syms: make([]Symbol, 1, 64)}
}

// New allocates a symbol and returns its id.
func (t *Table) New(sym Symbol) SymbolID {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, err := safecast.Conv[uint32](len(t.syms))
	if err != nil {
		panic(fmt.Errorf("symbol table overflow: %w", err))
	}
	t.syms = append(t.syms, sym)
	return SymbolID(n)
}

// Get returns the symbol for id.
func (t *Table) Get(id SymbolID) (Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if !id.IsValid() || int(id) >= len(t.syms) {
		return Symbol{}, false
	}
	return t.syms[id], true
}

// Name returns the symbol name or a placeholder for unknown ids.
func (t *Table) Name(id SymbolID) string {
	if sym, ok := t.Get(id); ok {
		return sym.Name
	}
	return fmt.Sprintf("sym#%d", id)
}

// Len reports the number of allocated symbols, including the reserved slot.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.syms)
}
