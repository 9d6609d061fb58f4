package types

// WellKnown lists the runtime types lowered code refers to directly, plus
// the exceptions and helpers the interpreter raises and implements natively.
type WellKnown struct {
	Exception          TypeID
	ArgumentNull       TypeID
	InvalidOperation   TypeID
	NullReference      TypeID
	Requires           TypeID
	Ensures            TypeID
	Invariant          TypeID
	Assert             TypeID
	ContractEvaluation TypeID
	InvalidCast        TypeID
	IndexOutOfRange    TypeID
	DivideByZero       TypeID
	Disposable         TypeID
	Comparer           TypeID
	ArrayList          TypeID
	Hashtable          TypeID
	Console            TypeID
}

// WellKnown returns the runtime type ids seeded at construction.
func (in *Interner) WellKnown() WellKnown {
	return in.wellKnown
}

// Exception field names shared by the runtime exception classes.
const (
	FieldMessage   = "message"
	FieldInner     = "inner"
	FieldParamName = "paramName"
)

// seedWellKnown registers runtime classes. Called once from NewInterner
// before the interner is shared, so the lock-free helpers are safe here.
func (in *Interner) seedWellKnown() {
	b := in.builtins
	runtime := ClassPublic | ClassRuntime
	class := func(name string, kind Kind, base TypeID) TypeID {
		id := in.registerClassLocked(name, kind, runtime)
		in.classLocked(id).Base = base
		return id
	}
	method := func(owner TypeID, name string, result TypeID, params ...TypeID) {
		info := in.classLocked(owner)
		info.Methods = append(info.Methods, Method{Name: name, Params: params, Result: result, Virtual: true})
	}

	wk := &in.wellKnown
	wk.Exception = class("Exception", KindClass, NoTypeID)
	exc := in.classLocked(wk.Exception)
	exc.Fields = []Field{
		{Name: FieldMessage, Type: b.String},
		{Name: FieldInner, Type: wk.Exception},
	}
	method(wk.Exception, ".ctor", b.Void, b.String)

	derived := func(name string) TypeID {
		id := class(name, KindClass, wk.Exception)
		method(id, ".ctor", b.Void, b.String)
		return id
	}
	wk.ArgumentNull = derived("ArgumentNullException")
	in.classLocked(wk.ArgumentNull).Fields = []Field{{Name: FieldParamName, Type: b.String}}
	wk.InvalidOperation = derived("InvalidOperationException")
	wk.NullReference = derived("NullReferenceException")
	wk.Requires = derived("RequiresException")
	wk.Ensures = derived("EnsuresException")
	wk.Invariant = derived("InvariantException")
	wk.Assert = derived("AssertException")
	wk.ContractEvaluation = derived("ContractEvaluationException")
	method(wk.ContractEvaluation, ".ctor", b.Void, b.String, wk.Exception)
	wk.InvalidCast = derived("InvalidCastException")
	wk.IndexOutOfRange = derived("IndexOutOfRangeException")
	wk.DivideByZero = derived("DivideByZeroException")

	wk.Disposable = class("IDisposable", KindInterface, NoTypeID)
	method(wk.Disposable, "Dispose", b.Void)

	wk.Comparer = class("IComparer", KindInterface, NoTypeID)
	method(wk.Comparer, "Compare", b.Int, b.Object, b.Object)
	method(wk.Comparer, "Equals", b.Bool, b.Object, b.Object)
	method(wk.Comparer, "GetHashCode", b.Int, b.Object)

	wk.ArrayList = class("ArrayList", KindClass, NoTypeID)
	method(wk.ArrayList, ".ctor", b.Void)
	method(wk.ArrayList, "Add", b.Void, b.Object)
	method(wk.ArrayList, "get_Count", b.Int)
	method(wk.ArrayList, "get_Item", b.Object, b.Int)
	method(wk.ArrayList, "set_Item", b.Void, b.Int, b.Object)
	method(wk.ArrayList, "Sort", b.Void, wk.Comparer)

	wk.Hashtable = class("Hashtable", KindClass, NoTypeID)
	method(wk.Hashtable, ".ctor", b.Void, wk.Comparer)
	method(wk.Hashtable, "get_Item", b.Object, b.Object)
	method(wk.Hashtable, "set_Item", b.Void, b.Object, b.Object)
	method(wk.Hashtable, "ContainsKey", b.Bool, b.Object)
	method(wk.Hashtable, "get_Count", b.Int)

	wk.Console = class("Console", KindClass, NoTypeID)
	in.classLocked(wk.Console).Methods = append(in.classLocked(wk.Console).Methods,
		Method{Name: "WriteLine", Params: []TypeID{b.Object}, Result: b.Void, Static: true})
}
