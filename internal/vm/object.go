package vm

import (
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

// Handle is a stable, monotonically increasing reference to a heap object.
// Handle(0) is always invalid.
type Handle uint32

// ObjectKind identifies the kind of heap object.
type ObjectKind uint8

const (
	// OKInstance is a class instance with named fields.
	OKInstance ObjectKind = iota
	// OKStruct is a value-type instance.
	OKStruct
	// OKBox holds a boxed value.
	OKBox
	OKArray
	OKDelegate
	// OKList backs the runtime ArrayList.
	OKList
	// OKTable backs the runtime Hashtable.
	OKTable
)

// Delegate is a method bound to an optional receiver.
type Delegate struct {
	Owner     types.TypeID
	Method    string
	HasTarget bool
	Target    Value
}

// Object is a typed heap object.
type Object struct {
	Kind   ObjectKind
	TypeID types.TypeID

	Fields map[string]Value
	Arr    []Value
	Boxed  Value
	Del    Delegate
	Table  *hashTable

	// Monitor counts nested Monitor.Enter calls.
	Monitor int
	// Readers and Writer track the ownership frame acquired by acquire
	// statements.
	Readers int
	Writer  bool
}

func (o *Object) held() bool {
	return o.Readers > 0 || o.Writer
}

// shallowCopy duplicates the object's own storage; referenced objects
// are shared.
func (o *Object) shallowCopy() *Object {
	out := *o
	if o.Fields != nil {
		out.Fields = make(map[string]Value, len(o.Fields))
		for k, v := range o.Fields {
			out.Fields[k] = v
		}
	}
	if o.Arr != nil {
		out.Arr = append([]Value(nil), o.Arr...)
	}
	if o.Table != nil {
		out.Table = o.Table.clone()
	}
	out.Monitor, out.Readers, out.Writer = 0, 0, false
	return &out
}
