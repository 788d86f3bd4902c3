package errors

import "fmt"

// ErrorCode represents an error code following the SQLite error code convention.
type ErrorCode int32

// Primary error codes.
const (
	SVDB_OK        ErrorCode = 0
	SVDB_ERROR     ErrorCode = 1
	SVDB_INTERNAL  ErrorCode = 2
	SVDB_ABORT     ErrorCode = 4
	SVDB_INTERRUPT ErrorCode = 9
	SVDB_NOTFOUND  ErrorCode = 12
	SVDB_SCHEMA    ErrorCode = 17
	SVDB_TOOBIG    ErrorCode = 18

	SVDB_CONSTRAINT ErrorCode = 19
	SVDB_MISMATCH   ErrorCode = 20
	SVDB_MISUSE     ErrorCode = 21
	SVDB_RANGE      ErrorCode = 25
)

// Extended error codes (256+).  The low byte encodes the primary code.
const (
	SVDB_CONSTRAINT_UNIQUE ErrorCode = 2067 // 19 | (8 << 8)

	SVDB_NOTFOUND_FUNCTION ErrorCode = 268 // 12 | (1 << 8)
	SVDB_NOTFOUND_COLUMN   ErrorCode = 524 // 12 | (2 << 8)
	SVDB_NOTFOUND_VARIABLE ErrorCode = 780 // 12 | (3 << 8)

	SVDB_MISMATCH_ARITY ErrorCode = 276 // 20 | (1 << 8)
	SVDB_MISMATCH_TYPE  ErrorCode = 532 // 20 | (2 << 8)

	SVDB_MISUSE_FROZEN ErrorCode = 277 // 21 | (1 << 8)

	SVDB_TOOBIG_REDUCTION ErrorCode = 274 // 18 | (1 << 8)

	SVDB_SCHEMA_PLAN      ErrorCode = 273 // 17 | (1 << 8)
	SVDB_SCHEMA_LAMBDA    ErrorCode = 529 // 17 | (2 << 8)
	SVDB_SCHEMA_SIGNATURE ErrorCode = 785 // 17 | (3 << 8)

	// INTERRUPT extended codes (query timeout / cancellation)
	SVDB_QUERY_TIMEOUT ErrorCode = 265 // 9 | (1 << 8)
)

var codeNames = map[ErrorCode]string{
	SVDB_OK:         "SVDB_OK",
	SVDB_ERROR:      "SVDB_ERROR",
	SVDB_INTERNAL:   "SVDB_INTERNAL",
	SVDB_ABORT:      "SVDB_ABORT",
	SVDB_INTERRUPT:  "SVDB_INTERRUPT",
	SVDB_NOTFOUND:   "SVDB_NOTFOUND",
	SVDB_SCHEMA:     "SVDB_SCHEMA",
	SVDB_TOOBIG:     "SVDB_TOOBIG",
	SVDB_CONSTRAINT: "SVDB_CONSTRAINT",
	SVDB_MISMATCH:   "SVDB_MISMATCH",
	SVDB_MISUSE:     "SVDB_MISUSE",
	SVDB_RANGE:      "SVDB_RANGE",

	SVDB_CONSTRAINT_UNIQUE: "SVDB_CONSTRAINT_UNIQUE",
	SVDB_NOTFOUND_FUNCTION: "SVDB_NOTFOUND_FUNCTION",
	SVDB_NOTFOUND_COLUMN:   "SVDB_NOTFOUND_COLUMN",
	SVDB_NOTFOUND_VARIABLE: "SVDB_NOTFOUND_VARIABLE",
	SVDB_MISMATCH_ARITY:    "SVDB_MISMATCH_ARITY",
	SVDB_MISMATCH_TYPE:     "SVDB_MISMATCH_TYPE",
	SVDB_MISUSE_FROZEN:     "SVDB_MISUSE_FROZEN",
	SVDB_TOOBIG_REDUCTION:  "SVDB_TOOBIG_REDUCTION",
	SVDB_SCHEMA_PLAN:       "SVDB_SCHEMA_PLAN",
	SVDB_SCHEMA_LAMBDA:     "SVDB_SCHEMA_LAMBDA",
	SVDB_SCHEMA_SIGNATURE:  "SVDB_SCHEMA_SIGNATURE",
	SVDB_QUERY_TIMEOUT:     "SVDB_QUERY_TIMEOUT",
}

// String returns the symbolic name of the code.
func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("SVDB_UNKNOWN(%d)", int32(c))
}

// Primary returns the primary code encoded in the low byte.
func (c ErrorCode) Primary() ErrorCode {
	return c & 0xff
}
