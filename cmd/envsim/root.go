package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wasmenv/contractenv"
	"github.com/wasmenv/contractenv/codec"
	"github.com/wasmenv/contractenv/examples/counter"
	"github.com/wasmenv/contractenv/offchain"
	"github.com/wasmenv/contractenv/types"
)

type globalFlags struct {
	configPath string
	home       string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "envsim",
		Short:         "Run contracts against a simulated host",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "YAML config file (default: goleveldb under --home)")
	root.PersistentFlags().StringVar(&g.home, "home", ".envsim", "directory of the simulator database")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level, overrides the config")

	root.AddCommand(
		fundCmd(g),
		deployCmd(g),
		callCmd(g),
		propsCmd(g),
		accountsCmd(g),
		advanceCmd(g),
	)
	return root
}

func (g *globalFlags) config() (types.Config, error) {
	var cfg types.Config
	if g.configPath != "" {
		var err error
		if cfg, err = types.LoadConfig(g.configPath); err != nil {
			return cfg, err
		}
	} else {
		cfg = types.DefaultConfig()
		cfg.Storage = types.StorageConfig{
			Backend: types.BackendGoLevelDB,
			Dir:     g.home,
			Name:    "envsim",
		}
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.Validate()
}

// withEngine opens the engine for the duration of fn. The counter code is
// uploaded on every open since code is not persisted.
func (g *globalFlags) withEngine(cmd *cobra.Command, fn func(e *offchain.Engine) error) (err error) {
	cfg, err := g.config()
	if err != nil {
		return err
	}
	logger, err := contractenv.NewLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	e, err := offchain.New(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := e.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := e.UploadCode(counter.Name, counter.Contract{}); err != nil {
		return err
	}
	return fn(e)
}

//---------- argument parsing ---------

// parseAccount accepts a hex account id or the name of an account.
func parseAccount(s string) (types.AccountID, error) {
	if strings.HasPrefix(s, "0x") || len(s) == 2*types.AccountIDLen {
		return types.ParseAccountID(s)
	}
	if s == "" {
		return types.AccountID{}, fmt.Errorf("empty account")
	}
	return types.AccountIDFromName(s), nil
}

// parseSelector accepts 0x followed by four hex bytes or a message name.
func parseSelector(s string) (types.Selector, error) {
	var sel types.Selector
	if strings.HasPrefix(s, "0x") {
		raw, err := hex.DecodeString(s[2:])
		if err != nil || len(raw) != types.SelectorLen {
			return sel, fmt.Errorf("invalid selector %q", s)
		}
		copy(sel[:], raw)
		return sel, nil
	}
	if s == "" {
		return sel, fmt.Errorf("empty selector")
	}
	return types.SelectorFromName(s), nil
}

// parseArg turns a command line argument into a value: @name is the account
// of that name, a hex account id an account, anything else an unsigned number.
func parseArg(s string) (any, error) {
	if name, ok := strings.CutPrefix(s, "@"); ok {
		return parseAccount(name)
	}
	if strings.HasPrefix(s, "0x") || len(s) == 2*types.AccountIDLen {
		return types.ParseAccountID(s)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("argument %q is neither an account nor a number", s)
	}
	return n, nil
}

func buildCallData(selector string, args []string) (types.CallData, error) {
	sel, err := parseSelector(selector)
	if err != nil {
		return nil, err
	}
	values := make([]any, 0, len(args))
	for _, s := range args {
		v, err := parseArg(s)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	encoded, err := codec.EncodeAll(codec.Default, values...)
	if err != nil {
		return nil, err
	}
	return types.NewCallData(sel, encoded...), nil
}

// formatOutput renders a return value as a number when it is one.
func formatOutput(out []byte) string {
	if len(out) == 0 {
		return "(none)"
	}
	var n uint64
	if err := codec.Default.Decode(out, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return "0x" + hex.EncodeToString(out)
}
