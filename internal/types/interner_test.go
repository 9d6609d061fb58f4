package types

import (
	"sync"
	"testing"
)

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.Bool == NoTypeID || b.Object == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	if in.Kind(b.Int) != KindInt || in.TypeString(b.Int) != "int" {
		t.Fatalf("unexpected int builtin: %s", in.TypeString(b.Int))
	}
	if in.TypeString(b.Double) != "double" || in.TypeString(b.Ulong) != "ulong" {
		t.Fatalf("unexpected float/ulong rendering")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	elem := in.Builtins().String
	arr1 := in.Intern(MakeArray(elem))
	arr2 := in.Intern(MakeArray(elem))
	if arr1 != arr2 {
		t.Fatalf("array types should be deduplicated")
	}
	if got := in.TypeString(arr1); got != "string[]" {
		t.Fatalf("TypeString = %q", got)
	}
}

func TestRegisterClassAlwaysFresh(t *testing.T) {
	in := NewInterner()
	a := in.RegisterClass("Point", KindStruct, 0)
	b := in.RegisterClass("Point", KindStruct, 0)
	if a == b {
		t.Fatalf("nominal registration must allocate distinct ids")
	}
	if got, _ := in.ClassByName("Point"); got != a {
		t.Fatalf("name index should keep the first registration")
	}
	if in.UniqueClassName("Point") == "Point" {
		t.Fatalf("UniqueClassName must avoid taken names")
	}
}

func TestFieldAndMethodLookupWalksBase(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	base := in.RegisterClass("Base", KindClass, 0)
	in.AddField(base, Field{Name: "x", Type: b.Int})
	in.AddMethod(base, Method{Name: "Get", Result: b.Int, Virtual: true})
	derived := in.RegisterClass("Derived", KindClass, 0)
	in.SetBase(derived, base)

	f, owner, ok := in.LookupField(derived, "x")
	if !ok || owner != base || f.Type != b.Int {
		t.Fatalf("LookupField = %+v %d %v", f, owner, ok)
	}
	if _, owner, ok := in.LookupMethod(derived, "Get"); !ok || owner != base {
		t.Fatalf("LookupMethod should resolve inherited method")
	}
	if !in.IsSubtype(derived, base) || in.IsSubtype(base, derived) {
		t.Fatalf("subtyping is wrong")
	}
	if !in.IsSubtype(derived, b.Object) {
		t.Fatalf("classes convert to object")
	}
}

func TestAddUniqueFieldAppendsSuffix(t *testing.T) {
	in := NewInterner()
	env := in.RegisterClass("Env", KindClass, ClassSynthesized)
	first := in.AddUniqueField(env, "x", in.Builtins().Int)
	second := in.AddUniqueField(env, "x", in.Builtins().Int)
	if first != "x" || second == first {
		t.Fatalf("unexpected names %q %q", first, second)
	}
	info, _ := in.ClassInfo(env)
	if len(info.Fields) != 2 {
		t.Fatalf("field set must grow by appending, got %d", len(info.Fields))
	}
}

func TestWellKnownExceptionHierarchy(t *testing.T) {
	in := NewInterner()
	wk := in.WellKnown()
	for _, id := range []TypeID{wk.Requires, wk.Ensures, wk.Invariant, wk.ArgumentNull, wk.ContractEvaluation, wk.InvalidCast, wk.IndexOutOfRange, wk.DivideByZero} {
		if !in.IsSubtype(id, wk.Exception) {
			t.Fatalf("%s should derive from Exception", in.TypeString(id))
		}
	}
	if _, _, ok := in.LookupField(wk.Requires, FieldMessage); !ok {
		t.Fatalf("derived exceptions inherit message")
	}
}

func TestSequenceMembers(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	seq := in.Intern(MakeEnumerable(b.Int))
	m, _, ok := in.LookupMethod(seq, "GetEnumerator")
	if !ok || in.Kind(m.Result) != KindEnumerator || in.Elem(m.Result) != b.Int {
		t.Fatalf("GetEnumerator not resolved: %+v", m)
	}
	if !in.IsDisposable(m.Result) {
		t.Fatalf("enumerators are disposable")
	}
}

func TestDelegateDeduplicates(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	d1 := in.RegisterDelegate([]TypeID{b.Int}, b.Bool)
	d2 := in.RegisterDelegate([]TypeID{b.Int}, b.Bool)
	d3 := in.RegisterDelegate([]TypeID{b.Long}, b.Bool)
	if d1 != d2 || d1 == d3 {
		t.Fatalf("delegate interning broken: %d %d %d", d1, d2, d3)
	}
}

func TestConcurrentRegistration(t *testing.T) {
	in := NewInterner()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := in.RegisterClass("Env", KindClass, ClassSynthesized)
			for j := 0; j < 16; j++ {
				in.AddUniqueField(id, "f", in.Builtins().Int)
				in.Intern(MakeArray(id))
			}
		}()
	}
	wg.Wait()
}

func TestRegisterUniqueClassNeverRepeatsNames(t *testing.T) {
	in := NewInterner()
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		names = map[string]bool{}
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, name := in.RegisterUniqueClass("Program.Main$env", KindClass, ClassSynthesized)
			mu.Lock()
			defer mu.Unlock()
			names[name] = true
		}()
	}
	wg.Wait()
	if len(names) != 8 {
		t.Fatalf("got %d distinct names, want 8: %v", len(names), names)
	}
	if !names["Program.Main$env"] || !names["Program.Main$env_7"] {
		t.Fatalf("unexpected names %v", names)
	}
}
