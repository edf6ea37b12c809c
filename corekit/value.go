package corekit

// ValueKind discriminates the closed set of shapes a recorded Value can
// take (§4.5). It is a closed set by design: the UI switches on it
// exhaustively, and adding a case is a breaking change to every consumer.
type ValueKind uint8

const (
	ValueInt ValueKind = iota
	ValueFloat
	ValueBool
	ValueChar
	ValueString
	ValueCString
	ValueSeq
	ValueArray
	ValueSet
	ValueVarargs
	ValueInstance
	ValueTuple
	ValueVariant
	ValueRef
	ValuePointer
	ValueTable
	ValueEnum
	ValueFunctionRef
	ValueRaw
	ValueRecursion
	ValueNonExpanded
	ValueNone
	ValueError
)

// String renders the ValueKind for logging and tracepoint descriptions.
func (k ValueKind) String() string {
	switch k {
	case ValueInt:
		return "int"
	case ValueFloat:
		return "float"
	case ValueBool:
		return "bool"
	case ValueChar:
		return "char"
	case ValueString:
		return "string"
	case ValueCString:
		return "cstring"
	case ValueSeq:
		return "seq"
	case ValueArray:
		return "array"
	case ValueSet:
		return "set"
	case ValueVarargs:
		return "varargs"
	case ValueInstance:
		return "instance"
	case ValueTuple:
		return "tuple"
	case ValueVariant:
		return "variant"
	case ValueRef:
		return "ref"
	case ValuePointer:
		return "pointer"
	case ValueTable:
		return "table"
	case ValueEnum:
		return "enum"
	case ValueFunctionRef:
		return "functionRef"
	case ValueRaw:
		return "raw"
	case ValueRecursion:
		return "recursion"
	case ValueNonExpanded:
		return "nonExpanded"
	case ValueNone:
		return "none"
	case ValueError:
		return "error"
	default:
		return "unknown"
	}
}

// Type describes the static type of a Value, as recorded by the tracer.
// Expanded containers carry an ElementType (or Fields, for Instance/Tuple)
// so the Value Service can label lazily-expanded children without
// re-deriving type information from the value bytes.
type Type struct {
	Name        string  `json:"name"`
	Kind        ValueKind `json:"kind"`
	ElementType *Type   `json:"elementType,omitempty"`
	Fields      []Field `json:"fields,omitempty"`
}

// Field is one named, typed member of a Type describing an Instance or
// Tuple.
type Field struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Address is the opaque identity the Value Service uses to recognize that
// two Pointer or Ref values, observed at different points in the recording,
// refer to the same underlying storage (§4.5 retraction property).
type Address uint64

// Value is a node in the value tree the Value Service returns to the UI.
// Exactly one of the kind-specific fields below is meaningful, selected by
// Variant. Container kinds (Seq, Array, Set, Instance, Tuple, Table) hold
// Children directly when eagerly expanded, or carry Truncated/NonExpanded
// markers when the Value Service paginated or deferred expansion (§4.5).
type Value struct {
	Kind Type      `json:"type"`
	Variant ValueKind `json:"kind"`

	Int    int64   `json:"int,omitempty"`
	Float  float64 `json:"float,omitempty"`
	Bool   bool    `json:"bool,omitempty"`
	Char   rune    `json:"char,omitempty"`
	Str    string  `json:"str,omitempty"`

	Addr     Address `json:"addr,omitempty"`
	// AddressDecodable reports whether Addr was successfully parsed from
	// the recorded address text, for Variant == ValuePointer (§4.5, §9
	// open question: pointer decode failures fall back to raw text, and
	// the wire schema makes that fallback explicit rather than leaving
	// the UI to guess from formatting).
	AddressDecodable bool    `json:"addressDecodable,omitempty"`
	Children []Value `json:"children,omitempty"`

	// Truncated reports that Children does not hold the full container:
	// the Value Service paginated it and the UI must re-request the
	// remainder via the expand pagination cursor.
	Truncated bool `json:"truncated,omitempty"`
	// Total is the full element count of a truncated container, when
	// known.
	Total int `json:"total,omitempty"`

	// VariantLabel names the active case of a sum-type Value (Variant,
	// Enum).
	VariantLabel string `json:"variantLabel,omitempty"`

	// RecursionOf points back at the Address already present higher in
	// the same value tree, when Variant == ValueRecursion.
	RecursionOf Address `json:"recursionOf,omitempty"`

	// ErrorMessage explains why the value couldn't be read, when Variant
	// == ValueError.
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// IsContainer reports whether v's kind holds Children rather than a scalar
// payload.
func (v Value) IsContainer() bool {
	switch v.Variant {
	case ValueSeq, ValueArray, ValueSet, ValueVarargs, ValueInstance, ValueTuple, ValueTable:
		return true
	default:
		return false
	}
}
