package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlvibe/fnvm/ext"
	_ "github.com/sqlvibe/fnvm/ext/json"
	_ "github.com/sqlvibe/fnvm/ext/math"
	"github.com/sqlvibe/fnvm/internal/CG"
	svdberr "github.com/sqlvibe/fnvm/internal/SF/errors"
	"github.com/sqlvibe/fnvm/internal/VM"
	"github.com/sqlvibe/fnvm/internal/config"
	"github.com/sqlvibe/fnvm/internal/log"
)

// planCacheSize bounds the compiled plans one invocation keeps.
const planCacheSize = 256

// app is the state shared by every subcommand, filled in by setup.
type app struct {
	configPath string
	logLevel   string
	funcsPath  string
	exts       []string

	cfg   config.Config
	reg   *VM.Registry
	cache *CG.PlanCache
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "fnvm",
		Short:         "Function VM: evaluate typed function plans over rows",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (yaml, json or toml)")
	pf.StringVar(&a.logLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")
	pf.StringVar(&a.funcsPath, "funcs", "", "JSON file of function definitions to install")
	pf.StringSliceVar(&a.exts, "ext", nil, "extensions to install (default: all registered)")

	root.AddCommand(newFuncsCmd(a), newEvalCmd(a), newBenchCmd(a))
	return root
}

// setup loads configuration, initializes logging and freezes the registry:
// builtins first, then extensions, then user definitions, which may call
// either.
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	log.Init(cfg.LogConfig())

	b := VM.NewBuilder()
	if err := VM.InstallBuiltins(b); err != nil {
		return err
	}
	if len(a.exts) == 0 {
		err = ext.InstallAll(b)
	} else {
		err = ext.Install(b, a.exts...)
	}
	if err != nil {
		return err
	}
	if a.funcsPath != "" {
		data, err := os.ReadFile(a.funcsPath)
		if err != nil {
			return svdberr.Wrap(svdberr.SVDB_NOTFOUND, err, "read %s", a.funcsPath)
		}
		defs, err := CG.DecodeFuncs(data)
		if err != nil {
			return err
		}
		if err := CG.InstallFuncs(b, defs); err != nil {
			return err
		}
	}

	a.reg = b.Freeze()
	a.cache = CG.NewPlanCache(planCacheSize)
	log.Debug("registry ready", "functions", a.reg.Len(), "config", cfg.String())
	return nil
}
