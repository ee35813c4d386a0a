package main

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"mint-ledger/chain"
	"mint-ledger/config"
	"mint-ledger/core"
	"mint-ledger/core/model"
	"mint-ledger/core/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Database   string
	Verbose    bool
	Format     string // "json" | "text"
	Metrics    bool

	cfg        config.Config
	metricsOut io.Writer
}

var validFormats = []string{"text", "json"}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "ledger",
		Short:         "Mint and balance ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.Metrics {
				opts.metricsOut = cmd.ErrOrStderr()
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config (default $"+config.EnvConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database path, or "+config.MemoryDatabase)
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVar(&opts.Metrics, "metrics", false, "write operation counters to stderr on exit")

	cmd.AddCommand(NewKeygenCommand(opts))
	cmd.AddCommand(NewInitMintCommand(opts))
	cmd.AddCommand(NewCreateAccountCommand(opts))
	cmd.AddCommand(NewMintToCommand(opts))
	cmd.AddCommand(NewTransferCommand(opts))
	cmd.AddCommand(NewBalanceCommand(opts))
	cmd.AddCommand(NewMintInfoCommand(opts))
	cmd.AddCommand(NewResolveCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	valid := false
	for _, f := range validFormats {
		if f == o.Format {
			valid = true
		}
	}
	if !valid {
		return fmt.Errorf("invalid format %q: must be one of %v", o.Format, validFormats)
	}

	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.Database != "" {
		cfg.Database = o.Database
	}
	if o.Verbose {
		cfg.Log.Level = logrus.DebugLevel.String()
	}
	if err := cfg.ConfigureLogging(); err != nil {
		return err
	}
	o.cfg = cfg
	return nil
}

// app is the ledger stack one command runs against.
type app struct {
	store      store.Store
	host       *chain.Host
	registry   *prometheus.Registry
	metricsOut io.Writer
}

func (o *RootOptions) open() (*app, error) {
	var (
		st  store.Store
		err error
	)
	if o.cfg.Database == config.MemoryDatabase {
		st = store.NewMemoryStore()
	} else {
		st, err = store.OpenSQLite(o.cfg.Database)
		if err != nil {
			return nil, err
		}
	}
	logrus.Debugf("opened ledger store %s", o.cfg.Database)

	reg := prometheus.NewRegistry()
	ledger := core.NewLedger(st, core.WithMetrics(core.NewMetrics(reg)))
	return &app{
		store:      st,
		host:       chain.NewHost(ledger),
		registry:   reg,
		metricsOut: o.metricsOut,
	}, nil
}

func (a *app) Close() {
	if a.metricsOut != nil {
		if err := a.writeMetrics(a.metricsOut); err != nil {
			logrus.Errorf("write metrics: %v", err)
		}
	}
	if err := a.store.Close(); err != nil {
		logrus.Errorf("close store: %v", err)
	}
}

// writeMetrics dumps the registry in the Prometheus text exposition format.
func (a *app) writeMetrics(w io.Writer) error {
	families, err := a.registry.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func (o *RootOptions) print(w io.Writer, v interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func parsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

func parseKeyFlag(cmd *cobra.Command, name string) (common.Address, error) {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		return common.Address{}, err
	}
	addr, err := model.ParseKey(v)
	if err != nil {
		return common.Address{}, fmt.Errorf("--%s: %w", name, err)
	}
	return addr, nil
}
