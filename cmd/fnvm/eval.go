package main

import (
	"database/sql"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/sqlvibe/fnvm/internal/CG"
	"github.com/sqlvibe/fnvm/internal/DS"
	"github.com/sqlvibe/fnvm/internal/QE"
	"github.com/sqlvibe/fnvm/internal/SATS"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
)

type evalFlags struct {
	plan    string
	vars    []string
	db      string
	query   string
	table   string
	filter  string
	selects []string
}

func newEvalCmd(a *app) *cobra.Command {
	var f evalFlags
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Evaluate a plan once, or filter and project the rows of a SQLite table",
		Example: `  fnvm eval --plan '{"call":"add","args":[{"lit":2},{"lit":3}]}'
  fnvm eval --db app.db --table users --filter '{"call":"gt","args":[{"col":"age"},{"var":"min"}]}' --var min=18
  fnvm eval --db app.db --query 'SELECT name FROM users' --select '{"call":"upper","args":[{"col":"name"}]}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars, err := parseVars(f.vars)
			if err != nil {
				return err
			}
			if f.plan != "" {
				return a.evalPlan(cmd, f.plan, vars)
			}
			return a.evalScan(cmd, f, vars)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.plan, "plan", "", "plan to evaluate once (JSON, or @file)")
	fl.StringArrayVar(&f.vars, "var", nil, "variable binding name=<json literal> (repeatable)")
	fl.StringVar(&f.db, "db", "", "SQLite database file to scan")
	fl.StringVar(&f.query, "query", "", "SQL query producing the rows to scan")
	fl.StringVar(&f.table, "table", "", "table to scan when no --query is given")
	fl.StringVar(&f.filter, "filter", "", "Bool plan selecting rows (JSON, or @file)")
	fl.StringArrayVar(&f.selects, "select", nil, "projection plan (JSON, or @file; repeatable)")
	cmd.MarkFlagsMutuallyExclusive("plan", "db")
	cmd.MarkFlagsMutuallyExclusive("query", "table")
	return cmd
}

// evalPlan evaluates a row-less plan and prints its value as JSON.
func (a *app) evalPlan(cmd *cobra.Command, src string, vars map[string]SATS.AlgebraicValue) error {
	code, err := a.compile(SATS.ProductType{}, src)
	if err != nil {
		return err
	}
	opts := make([]VM.ProgramOption, 0, len(vars))
	for name, v := range vars {
		opts = append(opts, VM.WithVar(name, v))
	}
	prog := VM.NewProgram(a.reg, opts...)
	v, err := VM.NewEvaluator(a.reg, prog, a.cfg.EvalOptions()...).Eval(code, nil)
	if err != nil {
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(v.ToInterface())
}

// evalScan loads rows from SQLite, runs the scan and prints one JSON array
// per result row.
func (a *app) evalScan(cmd *cobra.Command, f evalFlags, vars map[string]SATS.AlgebraicValue) error {
	if f.db == "" {
		return svdberr.Errorf(svdberr.SVDB_MISUSE, "either --plan or --db is required")
	}
	query, name := f.query, "query"
	if query == "" {
		if f.table == "" {
			return svdberr.Errorf(svdberr.SVDB_MISUSE, "--db needs --query or --table")
		}
		query, name = "SELECT * FROM "+quoteIdent(f.table), f.table
	}

	db, err := sql.Open("sqlite", f.db)
	if err != nil {
		return svdberr.Wrap(svdberr.SVDB_ERROR, err, "open %s", f.db)
	}
	defer db.Close()

	table, err := DS.LoadSQL(cmd.Context(), db, name, query, SATS.ProductType{})
	if err != nil {
		return err
	}

	var filter VM.Code
	if f.filter != "" {
		if filter, err = a.compile(table.Schema(), f.filter); err != nil {
			return err
		}
	}
	var projection []VM.Code
	for _, s := range f.selects {
		code, err := a.compile(table.Schema(), s)
		if err != nil {
			return err
		}
		projection = append(projection, code)
	}

	rows, err := QE.Scan(cmd.Context(), a.reg, table, filter, projection, a.scanOptions(vars))
	if err != nil {
		return err
	}
	return writeRows(cmd.OutOrStdout(), rows)
}

// compile compiles a plan given inline or as @file against schema.
func (a *app) compile(schema SATS.ProductType, src string) (VM.Code, error) {
	data, err := readPlan(src)
	if err != nil {
		return nil, err
	}
	return CG.NewCompiler(a.reg, schema, CG.WithCache(a.cache)).CompileJSON(data)
}

func (a *app) scanOptions(vars map[string]SATS.AlgebraicValue) QE.Options {
	opts := QE.DefaultOptions()
	opts.Workers = a.cfg.Scan.Workers
	opts.ChunkSize = a.cfg.Scan.ChunkSize
	opts.Eval = a.cfg.EvalOptions()
	opts.Vars = vars
	return opts
}

func readPlan(src string) ([]byte, error) {
	path, ok := strings.CutPrefix(src, "@")
	if !ok {
		return []byte(src), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, svdberr.Wrap(svdberr.SVDB_NOTFOUND, err, "read plan %s", path)
	}
	return data, nil
}

// parseVars parses name=<json> bindings. The literal is decoded the way plan
// literals are: integers stay I64.
func parseVars(bindings []string) (map[string]SATS.AlgebraicValue, error) {
	vars := make(map[string]SATS.AlgebraicValue, len(bindings))
	for _, kv := range bindings {
		name, lit, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			return nil, svdberr.Errorf(svdberr.SVDB_MISUSE, "bad --var %q, want name=<json>", kv)
		}
		dec := json.NewDecoder(strings.NewReader(lit))
		dec.UseNumber()
		var x interface{}
		if err := dec.Decode(&x); err != nil {
			return nil, svdberr.Wrap(svdberr.SVDB_MISUSE, err, "bad --var %s", name)
		}
		v, err := SATS.FromInterface(x, SATS.AnyType())
		if err != nil {
			return nil, err
		}
		vars[name] = v
	}
	return vars, nil
}

func writeRows(w io.Writer, rows [][]SATS.AlgebraicValue) error {
	enc := json.NewEncoder(w)
	for _, row := range rows {
		out := make([]interface{}, len(row))
		for i, v := range row {
			out[i] = v.ToInterface()
		}
		if err := enc.Encode(out); err != nil {
			return err
		}
	}
	return nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
