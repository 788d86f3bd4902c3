// Package SATS holds the algebraic type and value layer the VM consumes:
// AlgebraicType describes the shape of a value, AlgebraicValue is the tagged
// runtime datum passed through every evaluation.
package SATS

import (
	"strings"
)

// Kind identifies the shape of an AlgebraicType or AlgebraicValue.
type Kind uint8

const (
	KindUnit    Kind = iota // empty product
	KindBool                // bool
	KindI64                 // int64
	KindF64                 // float64
	KindString              // string
	KindBytes               // []byte
	KindArray               // homogeneous sequence
	KindProduct             // positional tuple with named fields
	KindAny                 // signatures only: accepts every value
)

var kindNames = [...]string{"Unit", "Bool", "I64", "F64", "String", "Bytes", "Array", "Product", "Any"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind(?)"
}

// ParseKind resolves a scalar kind name (case-insensitive). Array and Product
// need element information and are not accepted here.
func ParseKind(name string) (Kind, bool) {
	for i, n := range kindNames {
		if strings.EqualFold(n, name) {
			k := Kind(i)
			if k == KindArray || k == KindProduct {
				return 0, false
			}
			return k, true
		}
	}
	switch strings.ToUpper(name) {
	case "INT", "INTEGER", "BIGINT":
		return KindI64, true
	case "REAL", "FLOAT", "DOUBLE":
		return KindF64, true
	case "TEXT", "VARCHAR":
		return KindString, true
	case "BLOB":
		return KindBytes, true
	case "BOOLEAN":
		return KindBool, true
	}
	return 0, false
}

// ProductField is one named, typed element of a product.
type ProductField struct {
	Name string
	Type AlgebraicType
}

// AlgebraicType describes the shape of a value.
type AlgebraicType struct {
	Kind   Kind
	Elem   *AlgebraicType // KindArray only
	Fields []ProductField // KindProduct only
}

func UnitType() AlgebraicType { return AlgebraicType{Kind: KindUnit} }
func BoolType() AlgebraicType { return AlgebraicType{Kind: KindBool} }
func I64Type() AlgebraicType { return AlgebraicType{Kind: KindI64} }
func F64Type() AlgebraicType { return AlgebraicType{Kind: KindF64} }
func StringType() AlgebraicType { return AlgebraicType{Kind: KindString} }
func BytesType() AlgebraicType { return AlgebraicType{Kind: KindBytes} }
func AnyType() AlgebraicType { return AlgebraicType{Kind: KindAny} }

func ArrayOf(elem AlgebraicType) AlgebraicType {
	return AlgebraicType{Kind: KindArray, Elem: &elem}
}

func ProductOf(fields ...ProductField) AlgebraicType {
	if len(fields) == 0 {
		return UnitType()
	}
	return AlgebraicType{Kind: KindProduct, Fields: fields}
}

// Scalar builds the type for a scalar kind.
func Scalar(k Kind) AlgebraicType {
	return AlgebraicType{Kind: k}
}

// Complete reports whether every array in t, however deeply nested in
// product fields or other arrays, names its element type.
func (t AlgebraicType) Complete() bool {
	switch t.Kind {
	case KindArray:
		return t.Elem != nil && t.Elem.Complete()
	case KindProduct:
		for _, f := range t.Fields {
			if !f.Type.Complete() {
				return false
			}
		}
	}
	return true
}

// elemOrAny is the element type of an array; an array built without one
// behaves as Array<Any>.
func (t AlgebraicType) elemOrAny() AlgebraicType {
	if t.Elem == nil {
		return AnyType()
	}
	return *t.Elem
}

// Equal reports structural equality. Product field names take part.
func (t AlgebraicType) Equal(o AlgebraicType) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		if t.Elem == nil || o.Elem == nil {
			return t.Elem == nil && o.Elem == nil
		}
		return t.Elem.Equal(*o.Elem)
	case KindProduct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if t.Fields[i].Name != o.Fields[i].Name || !t.Fields[i].Type.Equal(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

// Accepts reports whether a value of type o may be passed where t is
// declared. Any accepts everything; products match positionally.
func (t AlgebraicType) Accepts(o AlgebraicType) bool {
	if t.Kind == KindAny {
		return true
	}
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.elemOrAny().Accepts(o.elemOrAny())
	case KindProduct:
		if len(t.Fields) != len(o.Fields) {
			return false
		}
		for i := range t.Fields {
			if !t.Fields[i].Type.Accepts(o.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

func (t AlgebraicType) String() string {
	switch t.Kind {
	case KindArray:
		if t.Elem == nil {
			return "Array<?>"
		}
		return "Array<" + t.Elem.String() + ">"
	case KindProduct:
		var sb strings.Builder
		sb.WriteByte('(')
		for i, f := range t.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			if f.Name != "" {
				sb.WriteString(f.Name)
				sb.WriteString(": ")
			}
			sb.WriteString(f.Type.String())
		}
		sb.WriteByte(')')
		return sb.String()
	}
	return t.Kind.String()
}

// ProductType is a row schema: ordered, named columns.
type ProductType struct {
	Fields []ProductField
}

// NewProductType builds a schema from its fields.
func NewProductType(fields ...ProductField) ProductType {
	return ProductType{Fields: fields}
}

// Len returns the number of columns.
func (p ProductType) Len() int { return len(p.Fields) }

// Index returns the position of the named column.
func (p ProductType) Index(name string) (int, bool) {
	for i, f := range p.Fields {
		if f.Name == name {
			return i, true
		}
	}
	return -1, false
}

// AsType returns the schema as an AlgebraicType product.
func (p ProductType) AsType() AlgebraicType {
	return ProductOf(p.Fields...)
}

func (p ProductType) String() string {
	return p.AsType().String()
}
