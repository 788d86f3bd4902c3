// Package json implements the JSON extension: functions that build, validate
// and query JSON text.
//
// Importing the package registers the extension:
//
//	import _ "github.com/sqlvibe/fnvm/ext/json"
package json

import (
	"bytes"
	gojson "encoding/json"
	"maps"
	"strconv"
	"strings"

	"github.com/sqlvibe/fnvm/ext"
	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

// DocCacheSize bounds the parsed documents each json_* callable keeps.
const DocCacheSize = 64

// JSONExtension implements the JSON extension.
type JSONExtension struct{}

func (e *JSONExtension) Name() string        { return "json" }
func (e *JSONExtension) Description() string { return "JSON extension" }

func (e *JSONExtension) Functions() []string {
	return []string{
		"json", "json_valid", "to_json", "json_array",
		"json_length", "json_extract", "json_type",
	}
}

var (
	tString = SATS.StringType()
	tAny    = SATS.AnyType()
)

func (e *JSONExtension) Install(b *VM.Builder) error {
	plain := []struct {
		def VM.FunDef
		fn  VM.FunVMFunc
	}{
		{VM.NewFunDef("json", []VM.Param{VM.NewParam("doc", tString)}, tString), evalJSON},
		{VM.NewFunDef("json_valid", []VM.Param{VM.NewParam("doc", tString)}, SATS.BoolType()), evalJSONValid},
		{VM.NewFunDef("to_json", []VM.Param{VM.NewParam("value", tAny)}, tString), evalToJSON},
		{VM.NewVariadicFunDef("json_array", nil, VM.NewParam("values", tAny), tString), evalJSONArray},
	}
	for _, f := range plain {
		if _, err := b.RegisterDef(f.def, f.fn); err != nil {
			return err
		}
	}

	// Each querying function parses through its own document cache.
	cached := []struct {
		def VM.FunDef
		fn  func(*docCache, VM.ProgramRef, VM.Args) (VM.Code, error)
	}{
		{VM.NewFunDef("json_length", []VM.Param{VM.NewParam("doc", tString)}, SATS.I64Type()), evalJSONLength},
		{VM.NewFunDef("json_extract", []VM.Param{VM.NewParam("doc", tString), VM.NewParam("path", tString)}, tAny), evalJSONExtract},
		{VM.NewFunDef("json_type", []VM.Param{VM.NewParam("doc", tString), VM.NewParam("path", tString)}, tString), evalJSONType},
	}
	for _, f := range cached {
		if _, err := b.RegisterDef(f.def, VM.NewCloneable(newDocCache(DocCacheSize), (*docCache).clone, f.fn)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	ext.Register("json", &JSONExtension{})
}

// ---------- helpers ----------

// docCache memoizes parsed documents by their text. It is private to one
// callable clone and never shared between goroutines.
type docCache struct {
	docs  map[string]interface{}
	limit int
	hits  int
}

func newDocCache(limit int) *docCache {
	return &docCache{docs: make(map[string]interface{}), limit: limit}
}

func (c *docCache) clone() *docCache {
	return &docCache{docs: maps.Clone(c.docs), limit: c.limit}
}

func (c *docCache) parse(s string) (interface{}, error) {
	if v, ok := c.docs[s]; ok {
		c.hits++
		return v, nil
	}
	v, err := parseJSON(s)
	if err != nil {
		return nil, err
	}
	if len(c.docs) >= c.limit {
		clear(c.docs)
	}
	c.docs[s] = v
	return v, nil
}

// parseJSON parses a JSON text, keeping numbers as json.Number so integers
// stay integral.
func parseJSON(s string) (interface{}, error) {
	dec := gojson.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_MISMATCH_TYPE, err, "malformed JSON")
	}
	if dec.More() {
		return nil, svdberr.Errorf(svdberr.SVDB_MISMATCH_TYPE, "malformed JSON: trailing data")
	}
	return v, nil
}

// marshalJSON encodes a Go value as a compact JSON string.
func marshalJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := gojson.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", svdberr.Wrap(svdberr.SVDB_MISMATCH_TYPE, err, "cannot encode JSON")
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// parsePath parses a JSON path (e.g. "$.a.b[0]") into segments. Each segment
// is either a string (object key) or an int (array index, negative counts
// from the end).
func parsePath(path string) ([]interface{}, error) {
	bad := svdberr.Errorf(svdberr.SVDB_MISUSE, "bad JSON path %q", path)
	if !strings.HasPrefix(path, "$") {
		return nil, bad
	}
	rest := path[1:]
	var segments []interface{}
	for rest != "" {
		switch rest[0] {
		case '.':
			rest = rest[1:]
			end := strings.IndexAny(rest, ".[")
			if end < 0 {
				end = len(rest)
			}
			key := rest[:end]
			if key == "" {
				return nil, bad
			}
			segments = append(segments, key)
			rest = rest[end:]
		case '[':
			end := strings.Index(rest, "]")
			if end < 0 {
				return nil, bad
			}
			idxStr := rest[1:end]
			if n, ok := strings.CutPrefix(idxStr, "#-"); ok {
				idxStr = "-" + n
			}
			idx, err := strconv.Atoi(idxStr)
			if err != nil {
				return nil, bad
			}
			segments = append(segments, idx)
			rest = rest[end+1:]
		default:
			return nil, bad
		}
	}
	return segments, nil
}

// getAtPath navigates a parsed JSON value along the given path segments.
func getAtPath(v interface{}, segments []interface{}) (interface{}, bool) {
	if len(segments) == 0 {
		return v, true
	}
	seg := segments[0]
	rest := segments[1:]
	switch node := v.(type) {
	case map[string]interface{}:
		key, ok := seg.(string)
		if !ok {
			return nil, false
		}
		child, exists := node[key]
		if !exists {
			return nil, false
		}
		return getAtPath(child, rest)
	case []interface{}:
		idx, ok := seg.(int)
		if !ok {
			return nil, false
		}
		if idx < 0 {
			idx = len(node) + idx
		}
		if idx < 0 || idx >= len(node) {
			return nil, false
		}
		return getAtPath(node[idx], rest)
	}
	return nil, false
}

// jsonTypeStr names the JSON type of a parsed value.
func jsonTypeStr(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case bool:
		if x {
			return "true"
		}
		return "false"
	case gojson.Number:
		if _, err := x.Int64(); err == nil {
			return "integer"
		}
		return "real"
	case string:
		return "text"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	}
	return "text"
}

// toValue converts a parsed JSON value into an AlgebraicValue. Objects have
// no algebraic counterpart, so any value containing one comes back as its
// JSON text.
func toValue(v interface{}) (SATS.AlgebraicValue, error) {
	if hasObject(v) {
		s, err := marshalJSON(v)
		if err != nil {
			return SATS.AlgebraicValue{}, err
		}
		return SATS.String(s), nil
	}
	return SATS.FromInterface(v, tAny)
}

func hasObject(v interface{}) bool {
	switch x := v.(type) {
	case map[string]interface{}:
		return true
	case []interface{}:
		for _, e := range x {
			if hasObject(e) {
				return true
			}
		}
	}
	return false
}

func text(s string) (VM.Code, error) { return VM.Lit(SATS.String(s)), nil }

// ---------- function implementations ----------

// evalJSON validates and canonicalizes a JSON string.
func evalJSON(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	v, err := parseJSON(args.At(0).Text())
	if err != nil {
		return nil, err
	}
	s, err := marshalJSON(v)
	if err != nil {
		return nil, err
	}
	return text(s)
}

func evalJSONValid(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	_, err := parseJSON(args.At(0).Text())
	return VM.Lit(SATS.Bool(err == nil)), nil
}

// evalToJSON encodes any value as JSON.
func evalToJSON(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	s, err := marshalJSON(args.At(0).ToInterface())
	if err != nil {
		return nil, err
	}
	return text(s)
}

// evalJSONArray creates a JSON array from its arguments.
func evalJSONArray(_ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	arr := make([]interface{}, args.Len())
	for i := range arr {
		arr[i] = args.At(i).ToInterface()
	}
	s, err := marshalJSON(arr)
	if err != nil {
		return nil, err
	}
	return text(s)
}

// evalJSONLength returns the number of top-level elements; scalars count 1.
func evalJSONLength(c *docCache, _ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	root, err := c.parse(args.At(0).Text())
	if err != nil {
		return nil, err
	}
	n := 1
	switch t := root.(type) {
	case map[string]interface{}:
		n = len(t)
	case []interface{}:
		n = len(t)
	}
	return VM.Lit(SATS.I64(int64(n))), nil
}

// evalJSONExtract returns the value at path, or () when there is none.
func evalJSONExtract(c *docCache, _ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	root, err := c.parse(args.At(0).Text())
	if err != nil {
		return nil, err
	}
	segs, err := parsePath(args.At(1).Text())
	if err != nil {
		return nil, err
	}
	val, found := getAtPath(root, segs)
	if !found {
		return VM.Lit(SATS.Unit()), nil
	}
	v, err := toValue(val)
	if err != nil {
		return nil, err
	}
	return VM.Lit(v), nil
}

// evalJSONType names the JSON type at path; "" when there is nothing there.
func evalJSONType(c *docCache, _ VM.ProgramRef, args VM.Args) (VM.Code, error) {
	root, err := c.parse(args.At(0).Text())
	if err != nil {
		return nil, err
	}
	segs, err := parsePath(args.At(1).Text())
	if err != nil {
		return nil, err
	}
	val, found := getAtPath(root, segs)
	if !found {
		return text("")
	}
	return text(jsonTypeStr(val))
}
