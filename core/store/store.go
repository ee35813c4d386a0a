package store

import (
	"context"
	"errors"
	"fmt"

	"mint-ledger/core/model"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInvalidWrite = errors.New("invalid write")
	ErrClosed       = errors.New("store closed")
)

// Store persists the ledger's account space and transaction journal.
// Commit applies a whole Batch or nothing.
type Store interface {
	// Load returns a copy of the account at addr or model.ErrAccountNotFound.
	Load(ctx context.Context, addr common.Address) (*model.Account, error)
	// BalanceAccountsByMint lists every balance account of mint ordered by address.
	BalanceAccountsByMint(ctx context.Context, mint common.Address) ([]*model.BalanceAccount, error)
	HasRecord(ctx context.Context, txID string) (bool, error)
	Records(ctx context.Context) ([]*model.Record, error)
	Commit(ctx context.Context, batch *Batch) error
	Close() error
}

// Batch collects the account writes of one operation and its journal record.
type Batch struct {
	accounts []*model.Account
	record   *model.Record
}

func NewBatch() *Batch {
	return &Batch{}
}

// Put stages acc. A later Put for the same address replaces the earlier one.
func (b *Batch) Put(acc *model.Account) *Batch {
	for i, staged := range b.accounts {
		if acc != nil && staged != nil && staged.Address == acc.Address {
			b.accounts[i] = acc
			return b
		}
	}
	b.accounts = append(b.accounts, acc)
	return b
}

func (b *Batch) SetRecord(r *model.Record) *Batch {
	b.record = r
	return b
}

func (b *Batch) Accounts() []*model.Account {
	return b.accounts
}

func (b *Batch) Record() *model.Record {
	return b.record
}

func (b *Batch) Len() int {
	return len(b.accounts)
}

func validateAccount(acc *model.Account) error {
	if acc == nil {
		return fmt.Errorf("%w: nil account", ErrInvalidWrite)
	}
	switch acc.Kind {
	case model.AccountKindMint:
		if acc.Mint == nil || acc.Balance != nil || acc.Mint.Address != acc.Address {
			return fmt.Errorf("%w: malformed mint account %s", ErrInvalidWrite, acc.Address.Hex())
		}
	case model.AccountKindBalance:
		if acc.Balance == nil || acc.Mint != nil || acc.Balance.Address != acc.Address {
			return fmt.Errorf("%w: malformed balance account %s", ErrInvalidWrite, acc.Address.Hex())
		}
	default:
		return fmt.Errorf("%w: unknown account kind %d", ErrInvalidWrite, acc.Kind)
	}
	return nil
}

func validateRecord(r *model.Record) error {
	if r != nil && r.TxID == "" {
		return fmt.Errorf("%w: record without transaction id", ErrInvalidWrite)
	}
	return nil
}
