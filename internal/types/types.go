// Package types implements the type system of spec.md §4.5: singleton
// primitives, freshly-constructed derived types (pointer/array/function/
// record/enum), and the sizing/alignment/layout arithmetic the semantic
// analyzer and lowering stage both consult.
//
// The Kind-tagged struct with per-kind payload fields is carried over
// directly from the teacher's lang/yparse/types.go Type/TypeKind/BaseType
// trio (Size/Alignment/Equal/String methods, struct-layout walk). Unlike
// the teacher, which hard-codes "all pointers are 16-bit" because YAPL
// targets exactly one machine, every size and alignment here is computed
// from a DataModel supplied by the active backend (REDESIGN FLAG 3 of
// spec.md: "every integer size... computed via DataModel, never hard-
// coded"), generalizing alignUp/alignDown from the teacher's
// lang/yparse/symtab.go.
package types

import "fmt"

// Endianness of a target's multi-byte scalar layout.
type Endianness int

const (
	LittleEndian Endianness = iota
	BigEndian
)

// DataModel captures everything sizing/alignment arithmetic needs from
// the active backend (spec.md §4.5: "sizes and alignments for primitives
// come from the target's data model, inferred from pointer width").
type DataModel struct {
	Name            string
	PointerWidth    int // bytes
	ShortWidth      int
	IntWidth        int
	LongWidth       int
	LongLongWidth   int
	FloatWidth      int
	DoubleWidth     int
	LongDoubleWidth int
	Endian          Endianness
	StackGrowsDown  bool
	MaxAlign        int
}

// Kind tags a Type.
type Kind int

const (
	Invalid Kind = iota
	Void
	Bool
	Char
	SChar
	UChar
	Short
	UShort
	Int
	UInt
	Long
	ULong
	LongLong
	ULongLong
	Float
	Double
	LongDouble
	Pointer
	Array
	Function
	Record // struct or union
	Enum
)

// RecordTag distinguishes struct from union layout rules (spec.md §4.5
// "Completion": "Union: all fields at offset 0").
type RecordTag int

const (
	StructTag RecordTag = iota
	UnionTag
)

// Field is one member of a Record type.
type Field struct {
	Name   string
	Type   *Type
	Offset int
}

// Type is a tagged type value. Primitive kinds are singletons vended by
// Context; Pointer/Array/Function/Record/Enum are freshly constructed
// per spec.md §4.5 ("no attempt at global hash-consing beyond
// primitives").
type Type struct {
	Kind Kind

	Pointee *Type // Pointer
	Elem    *Type // Array
	Len     int   // Array; -1 if unsized (incomplete)

	Return     *Type  // Function
	Params     []*Type
	ParamNames []string // parallel to Params; "" for an unnamed/abstract parameter
	Variadic   bool

	Tag       string // Record, Enum
	RecordTag RecordTag
	Fields    []Field
	Complete  bool
	Size      int
	Align     int

	EnumUnderlying *Type
}

// Context owns the primitive singletons and the active DataModel, and
// completes forward-declared record types in place (spec.md §4.5
// "Completion... mutates the existing type in place so that earlier
// pointers-to-tag observe the completion").
type Context struct {
	Model DataModel

	voidT, boolT                               *Type
	charT, scharT, ucharT                      *Type
	shortT, ushortT, intT, uintT               *Type
	longT, ulongT, llongT, ullongT              *Type
	floatT, doubleT, ldoubleT                   *Type
	records map[string]*Type
	enums   map[string]*Type
}

// NewContext creates a type Context sized by model.
func NewContext(model DataModel) *Context {
	c := &Context{Model: model, records: map[string]*Type{}, enums: map[string]*Type{}}
	c.voidT = &Type{Kind: Void, Size: 0, Align: 1}
	c.boolT = &Type{Kind: Bool, Size: 1, Align: 1}
	c.charT = &Type{Kind: Char, Size: 1, Align: 1}
	c.scharT = &Type{Kind: SChar, Size: 1, Align: 1}
	c.ucharT = &Type{Kind: UChar, Size: 1, Align: 1}
	c.shortT = &Type{Kind: Short, Size: model.ShortWidth, Align: model.ShortWidth}
	c.ushortT = &Type{Kind: UShort, Size: model.ShortWidth, Align: model.ShortWidth}
	c.intT = &Type{Kind: Int, Size: model.IntWidth, Align: model.IntWidth}
	c.uintT = &Type{Kind: UInt, Size: model.IntWidth, Align: model.IntWidth}
	c.longT = &Type{Kind: Long, Size: model.LongWidth, Align: model.LongWidth}
	c.ulongT = &Type{Kind: ULong, Size: model.LongWidth, Align: model.LongWidth}
	c.llongT = &Type{Kind: LongLong, Size: model.LongLongWidth, Align: model.LongLongWidth}
	c.ullongT = &Type{Kind: ULongLong, Size: model.LongLongWidth, Align: model.LongLongWidth}
	c.floatT = &Type{Kind: Float, Size: model.FloatWidth, Align: model.FloatWidth}
	c.doubleT = &Type{Kind: Double, Size: model.DoubleWidth, Align: model.DoubleWidth}
	c.ldoubleT = &Type{Kind: LongDouble, Size: model.LongDoubleWidth, Align: model.LongDoubleWidth}
	return c
}

func (c *Context) Void() *Type       { return c.voidT }
func (c *Context) Bool() *Type       { return c.boolT }
func (c *Context) Char() *Type       { return c.charT }
func (c *Context) SChar() *Type      { return c.scharT }
func (c *Context) UChar() *Type      { return c.ucharT }
func (c *Context) Short() *Type      { return c.shortT }
func (c *Context) UShort() *Type     { return c.ushortT }
func (c *Context) Int() *Type        { return c.intT }
func (c *Context) UInt() *Type       { return c.uintT }
func (c *Context) Long() *Type       { return c.longT }
func (c *Context) ULong() *Type      { return c.ulongT }
func (c *Context) LongLong() *Type   { return c.llongT }
func (c *Context) ULongLong() *Type  { return c.ullongT }
func (c *Context) Float() *Type      { return c.floatT }
func (c *Context) Double() *Type     { return c.doubleT }
func (c *Context) LongDouble() *Type { return c.ldoubleT }

// NewPointer constructs a pointer type (spec.md §4.5: "Derived types are
// freshly constructed").
func (c *Context) NewPointer(pointee *Type) *Type {
	return &Type{Kind: Pointer, Pointee: pointee, Size: c.Model.PointerWidth, Align: c.Model.PointerWidth}
}

// NewArray constructs an array type of len elements (len -1 for an
// incomplete/unsized array, e.g. `int a[]`).
func (c *Context) NewArray(elem *Type, length int) *Type {
	t := &Type{Kind: Array, Elem: elem, Len: length, Align: elem.Align}
	if length >= 0 {
		t.Size = elem.Size * length
	} else {
		t.Size = -1
	}
	return t
}

// NewFunction constructs a function type. paramNames is parallel to
// params and may contain empty strings for abstract (nameless)
// parameter declarators.
func (c *Context) NewFunction(ret *Type, params []*Type, paramNames []string, variadic bool) *Type {
	return &Type{Kind: Function, Return: ret, Params: params, ParamNames: paramNames, Variadic: variadic, Align: 1}
}

// DeclareRecord returns the (possibly incomplete) record type named tag,
// creating an incomplete forward declaration if this is the first
// mention (spec.md §4.5 "Completion").
func (c *Context) DeclareRecord(tag string, rtag RecordTag) *Type {
	if t, ok := c.records[tag]; ok {
		return t
	}
	t := &Type{Kind: Record, Tag: tag, RecordTag: rtag, Complete: false}
	c.records[tag] = t
	return t
}

// CompleteRecord lays out fields on t in place (spec.md §4.5: "walk
// fields in order, align offset up to each field's alignment, assign
// offset, advance offset by size; record struct size as final offset
// rounded up to the max alignment. Union: all fields at offset 0; size
// is max field size rounded up to max alignment").
func (c *Context) CompleteRecord(t *Type, fields []Field) error {
	if t.Complete {
		return fmt.Errorf("redefinition of %s %q", recordTagWord(t.RecordTag), t.Tag)
	}
	maxAlign := 1
	if t.RecordTag == UnionTag {
		size := 0
		for i := range fields {
			fields[i].Offset = 0
			if fields[i].Type.Align > maxAlign {
				maxAlign = fields[i].Type.Align
			}
			if fields[i].Type.Size > size {
				size = fields[i].Type.Size
			}
		}
		t.Fields = fields
		t.Align = maxAlign
		t.Size = AlignUp(size, maxAlign)
	} else {
		offset := 0
		for i := range fields {
			if fields[i].Type.Align > maxAlign {
				maxAlign = fields[i].Type.Align
			}
			offset = AlignUp(offset, fields[i].Type.Align)
			fields[i].Offset = offset
			offset += fields[i].Type.Size
		}
		t.Fields = fields
		t.Align = maxAlign
		t.Size = AlignUp(offset, maxAlign)
	}
	t.Complete = true
	return nil
}

func recordTagWord(rt RecordTag) string {
	if rt == UnionTag {
		return "union"
	}
	return "struct"
}

// DeclareEnum returns the enum type named tag, creating it if new.
// underlying defaults to int per spec.md's usual C enum rule.
func (c *Context) DeclareEnum(tag string, underlying *Type) *Type {
	if t, ok := c.enums[tag]; ok {
		return t
	}
	t := &Type{Kind: Enum, Tag: tag, EnumUnderlying: underlying, Size: underlying.Size, Align: underlying.Align, Complete: true}
	c.enums[tag] = t
	return t
}

// AlignUp rounds n up to the nearest multiple of align (align must be a
// power of two), the exact arithmetic the teacher's lang/yparse/symtab.go
// alignUp/alignDown pair implements for stack-frame slot assignment.
func AlignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// AlignDown rounds n down to the nearest multiple of align.
func AlignDown(n, align int) int {
	if align <= 1 {
		return n
	}
	return n &^ (align - 1)
}

func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	switch t.Kind {
	case Void:
		return "void"
	case Bool:
		return "_Bool"
	case Char:
		return "char"
	case SChar:
		return "signed char"
	case UChar:
		return "unsigned char"
	case Short:
		return "short"
	case UShort:
		return "unsigned short"
	case Int:
		return "int"
	case UInt:
		return "unsigned int"
	case Long:
		return "long"
	case ULong:
		return "unsigned long"
	case LongLong:
		return "long long"
	case ULongLong:
		return "unsigned long long"
	case Float:
		return "float"
	case Double:
		return "double"
	case LongDouble:
		return "long double"
	case Pointer:
		return t.Pointee.String() + "*"
	case Array:
		return fmt.Sprintf("%s[%d]", t.Elem.String(), t.Len)
	case Function:
		return fmt.Sprintf("%s(...)", t.Return.String())
	case Record:
		return recordTagWord(t.RecordTag) + " " + t.Tag
	case Enum:
		return "enum " + t.Tag
	default:
		return "<invalid>"
	}
}

// Equal reports structural/nominal equality per spec.md §4.5's
// assignment-compatibility rule's "same type" clause.
func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case Pointer:
		return t.Pointee.Equal(other.Pointee)
	case Array:
		return t.Len == other.Len && t.Elem.Equal(other.Elem)
	case Record, Enum:
		return t.Tag == other.Tag
	case Function:
		if !t.Return.Equal(other.Return) || len(t.Params) != len(other.Params) || t.Variadic != other.Variadic {
			return false
		}
		for i := range t.Params {
			if !t.Params[i].Equal(other.Params[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// IsIntegral reports whether t is one of the integer kinds (spec.md
// §4.5's integer-promotion/usual-arithmetic-conversion rules operate on
// this set).
func (t *Type) IsIntegral() bool {
	switch t.Kind {
	case Bool, Char, SChar, UChar, Short, UShort, Int, UInt, Long, ULong, LongLong, ULongLong, Enum:
		return true
	}
	return false
}

// IsFloating reports whether t is float/double/long double.
func (t *Type) IsFloating() bool {
	switch t.Kind {
	case Float, Double, LongDouble:
		return true
	}
	return false
}

// IsArithmetic reports whether t participates in usual arithmetic
// conversions.
func (t *Type) IsArithmetic() bool { return t.IsIntegral() || t.IsFloating() }

// IsScalar reports whether t is valid as an if/while/do/for condition
// (spec.md §4.7: "conditions must be scalar").
func (t *Type) IsScalar() bool { return t.IsArithmetic() || t.Kind == Pointer }

// IsUnsigned reports whether t is an unsigned integer kind.
func (t *Type) IsUnsigned() bool {
	switch t.Kind {
	case Bool, UChar, UShort, UInt, ULong, ULongLong:
		return true
	}
	return false
}

// Rank orders integer kinds for promotion/usual-arithmetic-conversion
// purposes (spec.md §4.5): higher rank wins.
func (t *Type) Rank() int {
	switch t.Kind {
	case Bool:
		return 1
	case Char, SChar, UChar:
		return 2
	case Short, UShort:
		return 3
	case Int, UInt, Enum:
		return 4
	case Long, ULong:
		return 5
	case LongLong, ULongLong:
		return 6
	default:
		return 0
	}
}

func (t *Type) IsPointer() bool  { return t.Kind == Pointer }
func (t *Type) IsArray() bool    { return t.Kind == Array }
func (t *Type) IsFunction() bool { return t.Kind == Function }
func (t *Type) IsRecord() bool   { return t.Kind == Record }
func (t *Type) IsVoid() bool     { return t.Kind == Void }

// Decay implements array-to-pointer and function-to-pointer decay
// (spec.md §4.5 "Array decay"/"Function decay").
func (c *Context) Decay(t *Type) *Type {
	switch t.Kind {
	case Array:
		return c.NewPointer(t.Elem)
	case Function:
		return c.NewPointer(t)
	default:
		return t
	}
}

// Promote implements integer promotion (spec.md §4.5 "Integer
// promotion"): any integer whose rank is below int promotes to int (or
// unsigned int if the original was unsigned and does not fit in int).
func (c *Context) Promote(t *Type) *Type {
	if !t.IsIntegral() || t.Rank() >= c.intT.Rank() {
		return t
	}
	if t.IsUnsigned() && t.Size >= c.intT.Size {
		return c.uintT
	}
	return c.intT
}

// UsualArithmeticConversions implements spec.md §4.5's rule: promote
// both operands; if either is long double/double/float pick that;
// otherwise pick long (unsigned if either is unsigned), else int
// (unsigned if either is unsigned).
func (c *Context) UsualArithmeticConversions(a, b *Type) *Type {
	a, b = c.Promote(a), c.Promote(b)
	if a.Kind == LongDouble || b.Kind == LongDouble {
		return c.ldoubleT
	}
	if a.Kind == Double || b.Kind == Double {
		return c.doubleT
	}
	if a.Kind == Float || b.Kind == Float {
		return c.floatT
	}
	if a.Rank() >= c.longT.Rank() || b.Rank() >= c.longT.Rank() {
		if a.IsUnsigned() || b.IsUnsigned() {
			return c.ulongT
		}
		return c.longT
	}
	if a.IsUnsigned() || b.IsUnsigned() {
		return c.uintT
	}
	return c.intT
}
