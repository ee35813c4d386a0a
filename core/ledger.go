package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mint-ledger/core/model"
	"mint-ledger/core/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// Ledger validates operations against the stored mint and balance accounts
// and commits their effects through a single store batch. It assumes the
// caller serializes operations on overlapping accounts.
type Ledger struct {
	store   store.Store
	metrics *Metrics
	now     func() time.Time
}

type Option func(*Ledger)

func WithMetrics(m *Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{store: st, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// outcome is what a handler decided: the accounts to write and the values
// journaled alongside them.
type outcome struct {
	writes []*model.Account
	signer common.Address
	amount uint64
}

type handler func(op model.Operation, view accountView, signers signerSet) (*outcome, error)

var handlers = map[model.OperationKind]handler{
	model.OperationInitializeMint:          initializeMint,
	model.OperationCreateAssociatedAccount: createAssociatedAccount,
	model.OperationMintTo:                  mintTo,
	model.OperationTransfer:                transfer,
}

// HandleTransaction applies op on behalf of the verified signers. Rejected
// operations are journaled under txID with their result code and leave every
// account untouched.
func (l *Ledger) HandleTransaction(ctx context.Context, txID string, op model.Operation, signers []common.Address) (*model.Record, error) {
	logrus.Infof("handle transaction %s, operation %s, accounts %d", txID, op.Kind, len(op.Accounts))

	if txID == "" {
		return nil, model.Fail(model.CodeInvalidOperation, op.Kind, "empty transaction id")
	}
	seen, err := l.store.HasRecord(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("handle transaction %s: %w", txID, err)
	}
	if seen {
		l.metrics.observe(op.Kind, model.CodeDuplicateTransaction)
		return nil, model.Fail(model.CodeDuplicateTransaction, op.Kind, "tx %s", txID)
	}

	record := &model.Record{
		TxID:      txID,
		Operation: op.Kind,
		Accounts:  append([]common.Address(nil), op.Accounts...),
		Timestamp: uint64(l.now().Unix()),
	}

	out, err := l.process(ctx, op, signers)
	if err != nil {
		var le *model.LedgerError
		if !errors.As(err, &le) {
			return nil, fmt.Errorf("handle transaction %s: %w", txID, err)
		}
		logrus.Warnf("%s rejected: %s", op.Kind, le)
		record.Code = le.Code
		if len(signers) > 0 {
			record.Signer = signers[0]
		}
		if cerr := l.store.Commit(ctx, store.NewBatch().SetRecord(record)); cerr != nil {
			return nil, fmt.Errorf("journal rejected transaction %s: %w", txID, cerr)
		}
		l.metrics.observe(op.Kind, le.Code)
		return record, err
	}

	record.Code = model.CodeOK
	record.Signer = out.signer
	record.Amount = out.amount

	batch := store.NewBatch().SetRecord(record)
	for _, acc := range out.writes {
		batch.Put(acc)
	}
	if err := l.store.Commit(ctx, batch); err != nil {
		return nil, fmt.Errorf("commit transaction %s: %w", txID, err)
	}
	l.metrics.observe(op.Kind, model.CodeOK)

	logrus.Infof("%s %s success, writes %d", op.Kind, txID, batch.Len())
	return record, nil
}

func (l *Ledger) process(ctx context.Context, op model.Operation, signers []common.Address) (*outcome, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}
	h, ok := handlers[op.Kind]
	if !ok {
		return nil, model.Fail(model.CodeInvalidOperation, op.Kind, "no handler")
	}
	if len(signers) == 0 {
		return nil, model.Fail(model.CodeUnauthorized, op.Kind, "no signer")
	}

	view, err := l.load(ctx, op.Accounts)
	if err != nil {
		return nil, err
	}
	return h(op, view, signerSet(signers))
}

func (l *Ledger) load(ctx context.Context, addrs []common.Address) (accountView, error) {
	view := make(accountView, len(addrs))
	for _, addr := range addrs {
		if _, ok := view[addr]; ok {
			continue
		}
		acc, err := l.store.Load(ctx, addr)
		if errors.Is(err, model.ErrAccountNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		view[addr] = acc
	}
	return view, nil
}

// accountView holds the accounts an operation referenced that exist.
type accountView map[common.Address]*model.Account

func (v accountView) exists(addr common.Address) bool {
	_, ok := v[addr]
	return ok
}

func (v accountView) mint(op model.OperationKind, addr common.Address) (*model.MintRecord, error) {
	acc, ok := v[addr]
	if !ok || acc.Kind != model.AccountKindMint || !acc.Mint.IsInitialized {
		return nil, model.Fail(model.CodeUninitializedAccount, op, "mint %s", addr.Hex())
	}
	return acc.Mint, nil
}

func (v accountView) balance(op model.OperationKind, addr common.Address) (*model.BalanceAccount, error) {
	acc, ok := v[addr]
	if !ok || acc.Kind != model.AccountKindBalance {
		return nil, model.Fail(model.CodeUninitializedAccount, op, "balance account %s", addr.Hex())
	}
	return acc.Balance, nil
}

// signerSet keeps the verified signers in submission order.
type signerSet []common.Address

func (s signerSet) has(k common.Address) bool {
	for _, signer := range s {
		if signer == k {
			return true
		}
	}
	return false
}

// payer is the first signer other than exclude, falling back to exclude.
func (s signerSet) payer(exclude common.Address) common.Address {
	for _, signer := range s {
		if signer != exclude {
			return signer
		}
	}
	return exclude
}

func quantum(requested, fixed uint64) uint64 {
	if requested == 0 {
		return fixed
	}
	return requested
}

func (l *Ledger) Mint(ctx context.Context, addr common.Address) (*model.MintRecord, error) {
	acc, err := l.store.Load(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acc.Kind != model.AccountKindMint {
		return nil, model.Fail(model.CodeAccountMismatch, "", "%s is a %s account", addr.Hex(), acc.Kind)
	}
	return acc.Mint, nil
}

func (l *Ledger) BalanceAccount(ctx context.Context, addr common.Address) (*model.BalanceAccount, error) {
	acc, err := l.store.Load(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acc.Kind != model.AccountKindBalance {
		return nil, model.Fail(model.CodeAccountMismatch, "", "%s is a %s account", addr.Hex(), acc.Kind)
	}
	return acc.Balance, nil
}

// TokenAmount returns the balance at addr scaled by its mint's decimals.
func (l *Ledger) TokenAmount(ctx context.Context, addr common.Address) (model.TokenAmount, error) {
	bal, err := l.BalanceAccount(ctx, addr)
	if err != nil {
		return model.TokenAmount{}, err
	}
	mint, err := l.Mint(ctx, bal.Mint)
	if err != nil {
		return model.TokenAmount{}, err
	}
	return model.NewTokenAmount(bal.Amount, mint.Decimals), nil
}

func (l *Ledger) Holders(ctx context.Context, mint common.Address) ([]*model.BalanceAccount, error) {
	return l.store.BalanceAccountsByMint(ctx, mint)
}

func (l *Ledger) Records(ctx context.Context) ([]*model.Record, error) {
	return l.store.Records(ctx)
}

// CheckConservation verifies that the balances of mint add up to its supply.
func (l *Ledger) CheckConservation(ctx context.Context, mint common.Address) error {
	rec, err := l.Mint(ctx, mint)
	if err != nil {
		return err
	}
	accounts, err := l.store.BalanceAccountsByMint(ctx, mint)
	if err != nil {
		return err
	}
	var sum uint64
	for _, acc := range accounts {
		if sum+acc.Amount < sum {
			return fmt.Errorf("mint %s: balances overflow", mint.Hex())
		}
		sum += acc.Amount
	}
	if sum != rec.Supply {
		return fmt.Errorf("mint %s: balances sum to %d, supply is %d", mint.Hex(), sum, rec.Supply)
	}
	return nil
}
