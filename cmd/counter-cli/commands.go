package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/govm-net/counter/contract/counter"
	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/vm"
)

type app struct {
	v       *viper.Viper
	logger  *zap.Logger
	logFile io.Closer
	engine  *vm.Engine
	caller  types.AccountHash
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{}
	root := &cobra.Command{
		Use:   "counter-cli",
		Short: "Install and drive the counter contract",
		Long: `Command line tool for the counter contract. Global state lives in an SQLite
database; run genesis once before installing.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.open(cmd)
		},
	}
	addFlags(root.PersistentFlags())

	root.AddCommand(
		a.genesisCmd(),
		a.installCmd(),
		a.callCmd(),
		a.getCmd(),
		a.queryCmd(),
	)
	return root, a
}

func (a *app) open(cmd *cobra.Command) error {
	v, err := getViper(cmd.Flags())
	if err != nil {
		return err
	}
	logger, logFile, err := newLogger(v)
	if err != nil {
		return errors.Wrap(err, "failed to create logger")
	}
	a.logger, a.logFile = logger, logFile
	caller, err := account(v)
	if err != nil {
		return err
	}
	engine, err := vm.NewEngine(engineConfig(v), vm.WithLogger(logger))
	if err != nil {
		return errors.Wrap(err, "failed to create engine")
	}
	a.v, a.engine, a.caller = v, engine, caller
	return nil
}

func (a *app) close() error {
	var err error
	if a.engine != nil {
		err = a.engine.Close()
		a.engine = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	if a.logFile != nil {
		if closeErr := a.logFile.Close(); err == nil {
			err = closeErr
		}
		a.logFile = nil
	}
	return err
}

// request stamps req with a deploy hash unique to this invocation.
func request(req *vm.ExecuteRequest) *vm.ExecuteRequest {
	now := time.Now()
	seed := types.Blake2b(
		binary.LittleEndian.AppendUint64(nil, uint64(now.UnixNano())),
		binary.LittleEndian.AppendUint64(nil, uint64(os.Getpid())),
	)
	return req.WithDeployHash(seed).WithBlockTime(uint64(now.UnixMilli()))
}

func (a *app) execute(ctx context.Context, req *vm.ExecuteRequest) (*vm.ExecutionResult, error) {
	result, err := a.engine.ExecuteAndCommit(ctx, request(req))
	if err != nil {
		return nil, err
	}
	if result.Err != nil {
		return nil, errors.Wrapf(result.Err, "%s failed", req.Kind)
	}
	a.logger.Info("executed",
		zap.Stringer("kind", req.Kind),
		zap.String("entry_point", req.EntryPoint),
		zap.Int("writes", len(result.Effects)),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (a *app) genesisCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "genesis",
		Short: "Create the default account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req := &vm.GenesisRequest{Accounts: []types.AccountHash{a.caller}}
			if err := a.engine.RunGenesis(cmd.Context(), req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", a.caller)
			return nil
		},
	}
}

func (a *app) installCmd() *cobra.Command {
	var useWasm bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the counter contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code := counter.ModuleBytes()
			if useWasm {
				var err error
				if code, err = counter.WasmModule(); err != nil {
					return err
				}
			}
			if _, err := a.execute(cmd.Context(), vm.NewStandardRequest(a.caller, code, nil)); err != nil {
				return err
			}
			acct, err := a.engine.GetAccount(cmd.Context(), a.caller)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "installed %s\n", acct.NamedKeys[counter.ContractKey])
			return nil
		},
	}
	cmd.Flags().BoolVar(&useWasm, "wasm", false, "Install the WebAssembly build instead of the native one")
	return cmd
}

func (a *app) callCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call <entry-point>",
		Short: "Call an entry point of the installed contract",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.execute(cmd.Context(), vm.NewContractCallByName(a.caller, counter.ContractKey, args[0], nil))
			if err != nil {
				return err
			}
			if result.Ret != nil {
				fmt.Fprintln(cmd.OutOrStdout(), result.Ret)
			}
			return nil
		},
	}
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the current count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			value, err := a.engine.Query(cmd.Context(), types.AccountKey(a.caller), counter.ContractKey, counter.CountKey)
			if err != nil {
				return err
			}
			if value.CLValue == nil {
				return errors.Errorf("count holds %s", value.Kind())
			}
			fmt.Fprintln(cmd.OutOrStdout(), value.CLValue)
			return nil
		},
	}
}

func (a *app) queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <key> [path...]",
		Short: "Print the stored value at a key, following named keys along path",
		Long: `Print the stored value at a key. The key is either in its string form
(account-hash-..., hash-..., uref-...) or a named key of the account.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			base := types.AccountKey(a.caller)
			path := args
			if key, err := types.ParseKey(args[0]); err == nil {
				base, path = key, args[1:]
			}
			value, err := a.engine.Query(cmd.Context(), base, path...)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(value, "", "  ")
			if err != nil {
				return errors.Wrap(err, "failed to marshal value")
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
