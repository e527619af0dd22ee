package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wasmenv/contractenv/examples/counter"
	"github.com/wasmenv/contractenv/offchain"
	"github.com/wasmenv/contractenv/types"
)

func fundCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "fund NAME AMOUNT",
		Short: "Create an account or set its balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			return g.withEngine(cmd, func(e *offchain.Engine) error {
				id := types.AccountIDFromName(args[0])
				_, exists, err := e.Account(id)
				if err != nil {
					return err
				}
				if exists {
					err = e.SetBalance(id, types.Balance(amount))
				} else {
					_, err = e.CreateAccount(args[0], types.Balance(amount))
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "account %s %s balance %d\n", args[0], id, amount)
				return nil
			})
		},
	}
}

type txFlags struct {
	from  string
	value uint64
	gas   uint64
}

func (f *txFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "alice", "sending account, name or hex id")
	cmd.Flags().Uint64Var(&f.value, "value", 0, "balance transferred with the message")
	cmd.Flags().Uint64Var(&f.gas, "gas", 0, "gas limit, 0 for the configured default")
}

func deployCmd(g *globalFlags) *cobra.Command {
	var (
		tx      txFlags
		initial uint64
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Instantiate a counter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := parseAccount(tx.from)
			if err != nil {
				return err
			}
			return g.withEngine(cmd, func(e *offchain.Engine) error {
				code := types.HashOf([]byte(counter.Name))
				addr, err := e.Instantiate(from, code, types.Balance(tx.value), tx.gas, counter.NewInput(initial))
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "address %s\n", addr)
				fmt.Fprintf(out, "gas used %d\n", e.LastGasUsed())
				return nil
			})
		},
	}
	tx.register(cmd)
	cmd.Flags().Uint64Var(&initial, "initial", 0, "initial counter value")
	return cmd
}

func callCmd(g *globalFlags) *cobra.Command {
	var (
		tx       txFlags
		selector string
		args     []string
	)
	cmd := &cobra.Command{
		Use:   "call ADDRESS",
		Short: "Send a message to a contract",
		Long: `Send a message to a contract.

Arguments are passed in order with --arg: a decimal number, a hex account id,
or @name for the account of that name.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, pos []string) error {
			callee, err := parseAccount(pos[0])
			if err != nil {
				return fmt.Errorf("address: %w", err)
			}
			from, err := parseAccount(tx.from)
			if err != nil {
				return err
			}
			input, err := buildCallData(selector, args)
			if err != nil {
				return err
			}
			return g.withEngine(cmd, func(e *offchain.Engine) error {
				before := len(e.Events())
				result, err := e.Call(from, callee, types.Balance(tx.value), tx.gas, input)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "output %s\n", formatOutput(result))
				fmt.Fprintf(out, "gas used %d\n", e.LastGasUsed())
				for _, ev := range e.Events()[before:] {
					fmt.Fprintf(out, "event from %s topics %d data %x\n", ev.Emitter, len(ev.Topics), ev.Data)
				}
				return nil
			})
		},
	}
	tx.register(cmd)
	cmd.Flags().StringVar(&selector, "selector", "", "message name or 0x prefixed selector")
	cmd.Flags().StringArrayVar(&args, "arg", nil, "message argument, repeatable")
	_ = cmd.MarkFlagRequired("selector")
	return cmd
}

func propsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "props",
		Short: "Show the block context contracts observe",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(e *offchain.Engine) error {
				c := e.Chain()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "block_number    %d\n", c.Block)
				fmt.Fprintf(out, "now_in_ms       %d\n", c.NowInMs)
				fmt.Fprintf(out, "gas_price       %d\n", c.GasPrice)
				fmt.Fprintf(out, "minimum_balance %d\n", c.MinimumBalance)
				fmt.Fprintf(out, "nonce           %d\n", c.Nonce)
				keys, err := e.RuntimeKeys()
				if err != nil {
					return err
				}
				for _, k := range keys {
					fmt.Fprintf(out, "runtime         %s\n", k)
				}
				return nil
			})
		},
	}
}

func accountsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "accounts",
		Short: "List accounts with their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(e *offchain.Engine) error {
				ids, err := e.Accounts()
				if err != nil {
					return err
				}
				for _, id := range ids {
					acct, _, err := e.Account(id)
					if err != nil {
						return err
					}
					kind := "user"
					if acct.IsContract() {
						name, _, err := e.CodeName(acct.CodeHash)
						if err != nil {
							return err
						}
						kind = "contract " + name
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %d %s\n", id, acct.Balance, kind)
				}
				return nil
			})
		},
	}
}

func advanceCmd(g *globalFlags) *cobra.Command {
	var blocks uint64
	cmd := &cobra.Command{
		Use:   "advance",
		Short: "Move the chain forward",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return g.withEngine(cmd, func(e *offchain.Engine) error {
				for n := uint64(0); n < blocks; n++ {
					if err := e.AdvanceBlock(); err != nil {
						return err
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "block_number %d\n", e.Chain().Block)
				return nil
			})
		},
	}
	cmd.Flags().Uint64Var(&blocks, "blocks", 1, "number of blocks")
	return cmd
}
