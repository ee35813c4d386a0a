package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"

	"mint-ledger/chain"
	"mint-ledger/core/model"
	"mint-ledger/utils/generics/must"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

type recordView struct {
	TxID      string   `json:"txId"`
	Operation string   `json:"operation"`
	Accounts  []string `json:"accounts"`
	Signer    string   `json:"signer"`
	Amount    uint64   `json:"amount"`
	Code      int8     `json:"code"`
	Result    string   `json:"result"`
	Timestamp uint64   `json:"timestamp"`
}

func newRecordView(r *model.Record) recordView {
	v := recordView{
		TxID:      r.TxID,
		Operation: string(r.Operation),
		Signer:    r.Signer.Hex(),
		Amount:    r.Amount,
		Code:      int8(r.Code),
		Result:    r.Code.String(),
		Timestamp: r.Timestamp,
	}
	for _, a := range r.Accounts {
		v.Accounts = append(v.Accounts, a.Hex())
	}
	return v
}

func (o *RootOptions) printRecord(w io.Writer, r *model.Record) error {
	v := newRecordView(r)
	return o.print(w, v, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %s (amount %d)\n", v.TxID, v.Operation, v.Result, v.Amount)
	})
}

func NewKeygenCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a signing key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			out := struct {
				PrivateKey string `json:"privateKey"`
				Address    string `json:"address"`
			}{
				PrivateKey: fmt.Sprintf("%x", crypto.FromECDSA(key)),
				Address:    chain.KeyAddress(key).Hex(),
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "private key: %s\naddress:     %s\n", out.PrivateKey, out.Address)
			})
		},
	}
}

func NewInitMintCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init-mint",
		Short: "Initialize a mint owned by the mint key",
		Long: `Initialize a new mint at the address of --mint-key.

The payer signs alongside the mint key. The mint authority defaults to the payer.

Example:
  ledger init-mint --mint-key <hex> --payer-key <hex> --decimals 0`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mintKey, err := parsePrivateKey(must.Must(cmd.Flags().GetString("mint-key")))
			if err != nil {
				return fmt.Errorf("--mint-key: %w", err)
			}
			payerKey, err := parsePrivateKey(must.Must(cmd.Flags().GetString("payer-key")))
			if err != nil {
				return fmt.Errorf("--payer-key: %w", err)
			}
			authority := chain.KeyAddress(payerKey)
			if cmd.Flags().Changed("authority") {
				if authority, err = parseKeyFlag(cmd, "authority"); err != nil {
					return err
				}
			}
			var freeze common.Address
			if cmd.Flags().Changed("freeze-authority") {
				if freeze, err = parseKeyFlag(cmd, "freeze-authority"); err != nil {
					return err
				}
			}
			decimals := must.Must(cmd.Flags().GetUint8("decimals"))

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			op := model.InitializeMint(chain.KeyAddress(mintKey), decimals, authority, freeze)
			rec, err := a.host.Execute(contextOf(cmd), op, payerKey, mintKey)
			if err != nil {
				return err
			}
			return opts.printRecord(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().String("mint-key", "", "private key of the new mint identity (required)")
	cmd.Flags().String("payer-key", "", "private key of the payer (required)")
	cmd.Flags().String("authority", "", "mint authority key (default payer)")
	cmd.Flags().String("freeze-authority", "", "freeze authority key")
	cmd.Flags().Uint8("decimals", 0, "decimal places of the mint")
	_ = cmd.MarkFlagRequired("mint-key")
	_ = cmd.MarkFlagRequired("payer-key")
	return cmd
}

func NewCreateAccountCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-account",
		Short: "Create the associated balance account of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payerKey, err := parsePrivateKey(must.Must(cmd.Flags().GetString("payer-key")))
			if err != nil {
				return fmt.Errorf("--payer-key: %w", err)
			}
			mint, err := parseKeyFlag(cmd, "mint")
			if err != nil {
				return err
			}
			owner, err := parseKeyFlag(cmd, "owner")
			if err != nil {
				return err
			}
			account, err := model.ResolveAssociatedAddress(mint, owner)
			if err != nil {
				return err
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			rec, err := a.host.Execute(contextOf(cmd), model.CreateAssociatedAccount(account, mint, owner), payerKey)
			if err != nil {
				return err
			}
			return opts.printRecord(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().String("payer-key", "", "private key of the payer (required)")
	cmd.Flags().String("mint", "", "mint key (required)")
	cmd.Flags().String("owner", "", "owner key (required)")
	_ = cmd.MarkFlagRequired("payer-key")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func NewMintToCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint-to",
		Short: "Mint units into an owner's associated account",
		Long: `Mint units into the associated account of --owner (default: the authority).

Without --amount a call mints the fixed quantum of 10 units.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			authorityKey, err := parsePrivateKey(must.Must(cmd.Flags().GetString("authority-key")))
			if err != nil {
				return fmt.Errorf("--authority-key: %w", err)
			}
			mint, err := parseKeyFlag(cmd, "mint")
			if err != nil {
				return err
			}
			owner := chain.KeyAddress(authorityKey)
			if cmd.Flags().Changed("owner") {
				if owner, err = parseKeyFlag(cmd, "owner"); err != nil {
					return err
				}
			}
			dest, err := model.ResolveAssociatedAddress(mint, owner)
			if err != nil {
				return err
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := contextOf(cmd)
			if must.Must(cmd.Flags().GetBool("create")) {
				if err := ensureAccount(ctx, a, dest, mint, owner, authorityKey); err != nil {
					return err
				}
			}
			op := model.MintTo(mint, dest).WithAmount(must.Must(cmd.Flags().GetUint64("amount")))
			rec, err := a.host.Execute(ctx, op, authorityKey)
			if err != nil {
				return err
			}
			return opts.printRecord(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().String("authority-key", "", "private key of the mint authority (required)")
	cmd.Flags().String("mint", "", "mint key (required)")
	cmd.Flags().String("owner", "", "owner of the destination account (default authority)")
	cmd.Flags().Uint64("amount", 0, "amount to mint (default fixed quantum)")
	cmd.Flags().Bool("create", false, "create the destination account when missing")
	_ = cmd.MarkFlagRequired("authority-key")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func NewTransferCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer units between associated accounts",
		Long: `Transfer units from the signer's associated account to the one of --to.

Without --amount a call moves the fixed quantum of 5 units.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerKey, err := parsePrivateKey(must.Must(cmd.Flags().GetString("owner-key")))
			if err != nil {
				return fmt.Errorf("--owner-key: %w", err)
			}
			mint, err := parseKeyFlag(cmd, "mint")
			if err != nil {
				return err
			}
			to, err := parseKeyFlag(cmd, "to")
			if err != nil {
				return err
			}
			src, err := model.ResolveAssociatedAddress(mint, chain.KeyAddress(ownerKey))
			if err != nil {
				return err
			}
			dst, err := model.ResolveAssociatedAddress(mint, to)
			if err != nil {
				return err
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := contextOf(cmd)
			if must.Must(cmd.Flags().GetBool("create")) {
				if err := ensureAccount(ctx, a, dst, mint, to, ownerKey); err != nil {
					return err
				}
			}
			op := model.Transfer(src, dst).WithAmount(must.Must(cmd.Flags().GetUint64("amount")))
			rec, err := a.host.Execute(ctx, op, ownerKey)
			if err != nil {
				return err
			}
			return opts.printRecord(cmd.OutOrStdout(), rec)
		},
	}
	cmd.Flags().String("owner-key", "", "private key of the source owner (required)")
	cmd.Flags().String("mint", "", "mint key (required)")
	cmd.Flags().String("to", "", "owner key of the destination (required)")
	cmd.Flags().Uint64("amount", 0, "amount to move (default fixed quantum)")
	cmd.Flags().Bool("create", false, "create the destination account when missing")
	_ = cmd.MarkFlagRequired("owner-key")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func NewBalanceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show the associated account balance of an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKeyFlag(cmd, "mint")
			if err != nil {
				return err
			}
			owner, err := parseKeyFlag(cmd, "owner")
			if err != nil {
				return err
			}
			account, err := model.ResolveAssociatedAddress(mint, owner)
			if err != nil {
				return err
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			amount, err := a.host.Ledger().TokenAmount(contextOf(cmd), account)
			if err != nil {
				return fmt.Errorf("balance of %s: %w", account.Hex(), err)
			}
			out := struct {
				Account     string            `json:"account"`
				TokenAmount model.TokenAmount `json:"tokenAmount"`
			}{account.Hex(), amount}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "%s: %s (%s raw, %d decimals)\n", out.Account, amount.UIAmountString, amount.Amount, amount.Decimals)
			})
		},
	}
	cmd.Flags().String("mint", "", "mint key (required)")
	cmd.Flags().String("owner", "", "owner key (required)")
	_ = cmd.MarkFlagRequired("mint")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func NewMintInfoCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint-info",
		Short: "Show a mint record and its holders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mintAddr, err := parseKeyFlag(cmd, "mint")
			if err != nil {
				return err
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := contextOf(cmd)
			mint, err := a.host.Ledger().Mint(ctx, mintAddr)
			if err != nil {
				return fmt.Errorf("mint %s: %w", mintAddr.Hex(), err)
			}
			holders, err := a.host.Ledger().Holders(ctx, mintAddr)
			if err != nil {
				return err
			}

			type holderView struct {
				Account string `json:"account"`
				Owner   string `json:"owner"`
				Amount  uint64 `json:"amount"`
			}
			out := struct {
				Mint            string       `json:"mint"`
				Supply          uint64       `json:"supply"`
				Decimals        uint8        `json:"decimals"`
				MintAuthority   string       `json:"mintAuthority"`
				FreezeAuthority string       `json:"freezeAuthority,omitempty"`
				Holders         []holderView `json:"holders"`
			}{
				Mint:          mint.Address.Hex(),
				Supply:        mint.Supply,
				Decimals:      mint.Decimals,
				MintAuthority: mint.MintAuthority.Hex(),
			}
			if mint.FreezeAuthority != nil {
				out.FreezeAuthority = mint.FreezeAuthority.Hex()
			}
			for _, h := range holders {
				out.Holders = append(out.Holders, holderView{h.Address.Hex(), h.Owner.Hex(), h.Amount})
			}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintf(w, "mint %s supply %s decimals %d authority %s\n",
					out.Mint, model.UIAmount(out.Supply, out.Decimals), out.Decimals, out.MintAuthority)
				for _, h := range out.Holders {
					fmt.Fprintf(w, "  %s owner %s amount %d\n", h.Account, h.Owner, h.Amount)
				}
			})
		},
	}
	cmd.Flags().String("mint", "", "mint key (required)")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

func NewResolveCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <mint> <owner>",
		Short: "Print the associated account address of (mint, owner)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := model.ParseAndResolve(args[0], args[1])
			if err != nil {
				return err
			}
			out := struct {
				Account string `json:"account"`
			}{addr.Hex()}
			return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
				fmt.Fprintln(w, out.Account)
			})
		},
	}
}

func NewHistoryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List journaled transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.host.Ledger().Records(contextOf(cmd))
			if err != nil {
				return err
			}
			views := make([]recordView, 0, len(records))
			for _, r := range records {
				views = append(views, newRecordView(r))
			}
			return opts.print(cmd.OutOrStdout(), views, func(w io.Writer) {
				for _, v := range views {
					fmt.Fprintf(w, "%s %-26s %-28s amount %d\n", v.TxID, v.Operation, v.Result, v.Amount)
				}
			})
		},
	}
}

func NewAuditCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Check that a mint's balances add up to its supply",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mint, err := parseKeyFlag(cmd, "mint")
			if err != nil {
				return err
			}

			a, err := opts.open()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.host.Ledger().CheckConservation(contextOf(cmd), mint); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "mint %s: ok\n", mint.Hex())
			return nil
		},
	}
	cmd.Flags().String("mint", "", "mint key (required)")
	_ = cmd.MarkFlagRequired("mint")
	return cmd
}

// ensureAccount creates the associated account at addr unless it exists.
func ensureAccount(ctx context.Context, a *app, addr, mint, owner common.Address, payer *ecdsa.PrivateKey) error {
	_, err := a.host.Ledger().BalanceAccount(ctx, addr)
	if err == nil {
		return nil
	}
	if !errors.Is(err, model.ErrAccountNotFound) {
		return err
	}
	_, err = a.host.Execute(ctx, model.CreateAssociatedAccount(addr, mint, owner), payer)
	return err
}

func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
