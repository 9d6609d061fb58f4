package lir

import (
	"github.com/hesam/SketchSharp-sub001/internal/source"
	"github.com/hesam/SketchSharp-sub001/internal/symbols"
	"github.com/hesam/SketchSharp-sub001/internal/types"
)

type BlockID int32
type LocalID int32

const (
	NoBlockID BlockID = -1
	NoLocalID LocalID = -1
)

type LocalFlags uint8

const (
	LocalFlagParam LocalFlags = 1 << iota
	LocalFlagThis
	LocalFlagTemp
	LocalFlagResult
	// LocalFlagPinned keeps the referenced object in place while the local is live.
	LocalFlagPinned
)

type Local struct {
	Sym   symbols.SymbolID
	Type  types.TypeID
	Flags LocalFlags
	Name  string
	Span  source.Span
}

type PlaceProjKind uint8

const (
	PlaceProjField PlaceProjKind = iota
	PlaceProjIndex
	PlaceProjDeref
)

// PlaceProj selects a component of a place. Index projections carry the
// index operand; field projections name the declaring type.
type PlaceProj struct {
	Kind  PlaceProjKind
	Owner types.TypeID
	Field string
	Index Operand
}

type PlaceKind uint8

const (
	PlaceLocal PlaceKind = iota
	// PlaceStatic is a static field of Owner.
	PlaceStatic
)

type Place struct {
	Kind  PlaceKind
	Local LocalID
	Owner types.TypeID
	Field string
	Proj  []PlaceProj
}

// LocalPlace is the place of a whole local.
func LocalPlace(id LocalID) Place {
	return Place{Kind: PlaceLocal, Local: id}
}

// StaticPlace is the place of a static field.
func StaticPlace(owner types.TypeID, field string) Place {
	return Place{Kind: PlaceStatic, Local: NoLocalID, Owner: owner, Field: field}
}

func (p Place) IsValid() bool {
	if p.Kind == PlaceStatic {
		return p.Field != ""
	}
	return p.Local != NoLocalID
}

func (p Place) extend(proj PlaceProj) Place {
	out := p
	out.Proj = make([]PlaceProj, len(p.Proj), len(p.Proj)+1)
	copy(out.Proj, p.Proj)
	out.Proj = append(out.Proj, proj)
	return out
}

// WithField projects a field declared on owner.
func (p Place) WithField(owner types.TypeID, name string) Place {
	return p.extend(PlaceProj{Kind: PlaceProjField, Owner: owner, Field: name})
}

// WithIndex projects an array element.
func (p Place) WithIndex(idx Operand) Place {
	return p.extend(PlaceProj{Kind: PlaceProjIndex, Index: idx})
}

// WithDeref dereferences a pointer stored at p.
func (p Place) WithDeref() Place {
	return p.extend(PlaceProj{Kind: PlaceProjDeref})
}

type OperandKind uint8

const (
	OperandConst OperandKind = iota
	OperandCopy
	// OperandAddrOf takes the address of a place.
	OperandAddrOf
)

type Operand struct {
	Kind  OperandKind
	Type  types.TypeID
	Const Const
	Place Place
}

// Copy reads place p of type ty.
func Copy(p Place, ty types.TypeID) Operand {
	return Operand{Kind: OperandCopy, Type: ty, Place: p}
}

type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstUint
	ConstFloat
	ConstBool
	ConstChar
	ConstString
	ConstNull
	// ConstDefault is the zero value of the operand type.
	ConstDefault
)

type Const struct {
	Kind        ConstKind
	Type        types.TypeID
	IntValue    int64
	UintValue   uint64
	FloatValue  float64
	BoolValue   bool
	StringValue string
}

func IntConst(v int64, ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstInt, Type: ty, IntValue: v}}
}

func BoolConst(v bool, ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstBool, Type: ty, BoolValue: v}}
}

func StringConst(s string, ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstString, Type: ty, StringValue: s}}
}

func NullConst(ty types.TypeID) Operand {
	return Operand{Kind: OperandConst, Type: ty, Const: Const{Kind: ConstNull, Type: ty}}
}
