package SATS

import (
	"encoding/json"
	"math"

	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
)

// ToInterface converts a value to plain Go values for result projection
// boundaries (JSON output, database/sql arguments). Not used in the hot path.
func (v AlgebraicValue) ToInterface() interface{} {
	switch v.K {
	case KindUnit:
		return nil
	case KindBool:
		return v.Bool()
	case KindI64:
		return v.N
	case KindF64:
		return v.F64()
	case KindString:
		return v.S
	case KindBytes:
		return v.Blob()
	case KindArray, KindProduct:
		out := make([]interface{}, len(v.Elems))
		for i, e := range v.Elems {
			out[i] = e.ToInterface()
		}
		return out
	}
	return nil
}

// FromInterface converts a Go value (as produced by database/sql drivers or
// encoding/json with UseNumber) into a value of type t. With t of kind Any
// the kind is inferred from the Go value. Values that do not fit t yield an
// error matching ErrTypeMismatch; nothing is coerced across kinds except
// integral numbers into F64 and integral floats into I64.
func FromInterface(x interface{}, t AlgebraicType) (AlgebraicValue, error) {
	if t.Kind == KindAny {
		return infer(x)
	}
	switch t.Kind {
	case KindUnit:
		if x == nil {
			return Unit(), nil
		}
	case KindBool:
		switch b := x.(type) {
		case bool:
			return Bool(b), nil
		case int64:
			if b == 0 || b == 1 {
				return Bool(b == 1), nil
			}
		}
	case KindI64:
		if n, ok := toInt64(x); ok {
			return I64(n), nil
		}
	case KindF64:
		if f, ok := toFloat64(x); ok {
			return F64(f), nil
		}
	case KindString:
		switch s := x.(type) {
		case string:
			return String(s), nil
		case []byte:
			return String(string(s)), nil
		}
	case KindBytes:
		switch b := x.(type) {
		case []byte:
			return Bytes(b), nil
		case string:
			return Bytes([]byte(b)), nil
		}
	case KindArray:
		if xs, ok := x.([]interface{}); ok {
			vs := make([]AlgebraicValue, len(xs))
			for i, e := range xs {
				v, err := FromInterface(e, t.elemOrAny())
				if err != nil {
					return AlgebraicValue{}, err
				}
				vs[i] = v
			}
			return Array(t.elemOrAny(), vs...), nil
		}
	case KindProduct:
		if xs, ok := x.([]interface{}); ok && len(xs) == len(t.Fields) {
			vs := make([]AlgebraicValue, len(xs))
			for i, e := range xs {
				v, err := FromInterface(e, t.Fields[i].Type)
				if err != nil {
					return AlgebraicValue{}, err
				}
				vs[i] = v
			}
			return Product(vs...), nil
		}
	}
	return AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "cannot convert %T (%v) to %s", x, x, t)
}

func infer(x interface{}) (AlgebraicValue, error) {
	switch v := x.(type) {
	case nil:
		return Unit(), nil
	case bool:
		return Bool(v), nil
	case int, int32, int64:
		n, _ := toInt64(v)
		return I64(n), nil
	case float32:
		return F64(float64(v)), nil
	case float64:
		return F64(v), nil
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return I64(n), nil
		}
		f, err := v.Float64()
		if err != nil {
			return AlgebraicValue{}, svdberr.Wrap(svdberr.SVDB_MISMATCH_TYPE, err, "bad number %q", v.String())
		}
		return F64(f), nil
	case string:
		return String(v), nil
	case []byte:
		return Bytes(v), nil
	case []interface{}:
		vs := make([]AlgebraicValue, len(v))
		elem := AnyType()
		for i, e := range v {
			ev, err := infer(e)
			if err != nil {
				return AlgebraicValue{}, err
			}
			vs[i] = ev
			if i == 0 {
				elem = ev.Type()
			} else if !elem.Accepts(ev.Type()) {
				elem = AnyType()
			}
		}
		return Array(elem, vs...), nil
	}
	return AlgebraicValue{}, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "unsupported value %T", x)
}

func toInt64(x interface{}) (int64, bool) {
	switch v := x.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), true
		}
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

func toFloat64(x interface{}) (float64, bool) {
	switch v := x.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}
