package SATS

import (
	"cmp"
	"encoding/hex"
	"math"
	"strconv"
	"strings"
)

// AlgebraicValue is a tagged runtime value. Scalars never allocate: I64 and
// Bool live in N, F64 is stored as its bit pattern in N, String and Bytes
// share S.
type AlgebraicValue struct {
	N     int64            // I64 value; Bool (1/0); F64 bits (math.Float64bits)
	S     string           // KindString content; KindBytes content
	Elems []AlgebraicValue // KindArray / KindProduct elements
	elem  *AlgebraicType   // KindArray element type, kept for empty arrays
	K     Kind
}

// Scalar constructors never allocate.
func Unit() AlgebraicValue { return AlgebraicValue{K: KindUnit} }
func I64(n int64) AlgebraicValue { return AlgebraicValue{K: KindI64, N: n} }
func F64(f float64) AlgebraicValue { return AlgebraicValue{K: KindF64, N: int64(math.Float64bits(f))} }
func String(s string) AlgebraicValue { return AlgebraicValue{K: KindString, S: s} }
func Bytes(b []byte) AlgebraicValue { return AlgebraicValue{K: KindBytes, S: string(b)} }
func Bool(b bool) AlgebraicValue {
	if b {
		return AlgebraicValue{K: KindBool, N: 1}
	}
	return AlgebraicValue{K: KindBool, N: 0}
}

// Array builds an array value with the given element type.
func Array(elem AlgebraicType, vs ...AlgebraicValue) AlgebraicValue {
	return AlgebraicValue{K: KindArray, Elems: vs, elem: &elem}
}

// Product builds a positional tuple; an empty product is Unit.
func Product(vs ...AlgebraicValue) AlgebraicValue {
	if len(vs) == 0 {
		return Unit()
	}
	return AlgebraicValue{K: KindProduct, Elems: vs}
}

// Accessors
func (v AlgebraicValue) Kind() Kind { return v.K }
func (v AlgebraicValue) IsUnit() bool { return v.K == KindUnit }
func (v AlgebraicValue) Bool() bool { return v.N != 0 }
func (v AlgebraicValue) I64() int64 { return v.N }
func (v AlgebraicValue) F64() float64 { return math.Float64frombits(uint64(v.N)) }
func (v AlgebraicValue) Text() string { return v.S }
func (v AlgebraicValue) Blob() []byte { return []byte(v.S) }
func (v AlgebraicValue) Len() int { return len(v.Elems) }
func (v AlgebraicValue) At(i int) AlgebraicValue { return v.Elems[i] }

// Type returns the type of the value. Product field names are not carried by
// values and come back empty.
func (v AlgebraicValue) Type() AlgebraicType {
	switch v.K {
	case KindArray:
		if v.elem != nil {
			return ArrayOf(*v.elem)
		}
		if len(v.Elems) > 0 {
			return ArrayOf(v.Elems[0].Type())
		}
		return ArrayOf(AnyType())
	case KindProduct:
		fields := make([]ProductField, len(v.Elems))
		for i, e := range v.Elems {
			fields[i] = ProductField{Type: e.Type()}
		}
		return ProductOf(fields...)
	}
	return Scalar(v.K)
}

// HasType reports whether v is a valid inhabitant of t.
func (v AlgebraicValue) HasType(t AlgebraicType) bool {
	if t.Kind == KindAny {
		return true
	}
	if v.K != t.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		elem := t.elemOrAny()
		if v.elem != nil && !elem.Accepts(*v.elem) {
			return false
		}
		for _, e := range v.Elems {
			if !e.HasType(elem) {
				return false
			}
		}
	case KindProduct:
		if len(v.Elems) != len(t.Fields) {
			return false
		}
		for i, e := range v.Elems {
			if !e.HasType(t.Fields[i].Type) {
				return false
			}
		}
	}
	return true
}

func (v AlgebraicValue) isNumeric() bool {
	return v.K == KindI64 || v.K == KindF64
}

func (v AlgebraicValue) asFloat() float64 {
	if v.K == KindI64 {
		return float64(v.N)
	}
	return v.F64()
}

// Compare orders two values and returns -1, 0 or 1. I64 and F64 compare
// numerically; otherwise values of different kinds order by kind.
func Compare(a, b AlgebraicValue) int {
	if a.isNumeric() && b.isNumeric() {
		if a.K == KindI64 && b.K == KindI64 {
			return cmp.Compare(a.N, b.N)
		}
		return cmp.Compare(a.asFloat(), b.asFloat())
	}
	if a.K != b.K {
		return cmp.Compare(a.K, b.K)
	}
	switch a.K {
	case KindUnit:
		return 0
	case KindBool:
		return cmp.Compare(a.N, b.N)
	case KindString, KindBytes:
		return strings.Compare(a.S, b.S)
	case KindArray, KindProduct:
		n := min(len(a.Elems), len(b.Elems))
		for i := 0; i < n; i++ {
			if c := Compare(a.Elems[i], b.Elems[i]); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.Elems), len(b.Elems))
	}
	return 0
}

// Equal reports strict equality: same kind and same payload. Unlike Compare,
// I64(1) and F64(1) are not equal.
func (v AlgebraicValue) Equal(o AlgebraicValue) bool {
	if v.K != o.K {
		return false
	}
	if v.K == KindArray || v.K == KindProduct {
		if len(v.Elems) != len(o.Elems) {
			return false
		}
		for i := range v.Elems {
			if !v.Elems[i].Equal(o.Elems[i]) {
				return false
			}
		}
		return true
	}
	return v.N == o.N && v.S == o.S
}

// String returns a human-readable representation.
func (v AlgebraicValue) String() string {
	switch v.K {
	case KindUnit:
		return "()"
	case KindBool:
		if v.N != 0 {
			return "true"
		}
		return "false"
	case KindI64:
		return strconv.FormatInt(v.N, 10)
	case KindF64:
		return strconv.FormatFloat(v.F64(), 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.S)
	case KindBytes:
		return "0x" + hex.EncodeToString([]byte(v.S))
	case KindArray, KindProduct:
		lb, rb := "[", "]"
		if v.K == KindProduct {
			lb, rb = "(", ")"
		}
		var sb strings.Builder
		sb.WriteString(lb)
		for i, e := range v.Elems {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(e.String())
		}
		sb.WriteString(rb)
		return sb.String()
	}
	return "?"
}
