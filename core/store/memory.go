package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"mint-ledger/core/model"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryStore keeps the ledger in process memory.
type MemoryStore struct {
	mu        sync.RWMutex
	closed    bool
	accounts  map[common.Address]*model.Account
	holders   map[common.Address]map[common.Address]struct{}
	records   []*model.Record
	recordIDs map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[common.Address]*model.Account),
		holders:   make(map[common.Address]map[common.Address]struct{}),
		recordIDs: make(map[string]struct{}),
	}
}

func (s *MemoryStore) Load(ctx context.Context, addr common.Address) (*model.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	acc, ok := s.accounts[addr]
	if !ok {
		return nil, model.ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) BalanceAccountsByMint(ctx context.Context, mint common.Address) ([]*model.BalanceAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	res := make([]*model.BalanceAccount, 0, len(s.holders[mint]))
	for addr := range s.holders[mint] {
		res = append(res, s.accounts[addr].Balance.Clone())
	}
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].Address.Bytes(), res[j].Address.Bytes()) < 0
	})
	return res, nil
}

func (s *MemoryStore) HasRecord(ctx context.Context, txID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, ErrClosed
	}

	_, ok := s.recordIDs[txID]
	return ok, nil
}

func (s *MemoryStore) Records(ctx context.Context) ([]*model.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	res := make([]*model.Record, len(s.records))
	for i, r := range s.records {
		c := *r
		c.Accounts = append([]common.Address(nil), r.Accounts...)
		res[i] = &c
	}
	return res, nil
}

// Commit validates every write before touching state, so a rejected batch
// leaves the store unchanged.
func (s *MemoryStore) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return nil
	}
	for _, acc := range batch.accounts {
		if err := validateAccount(acc); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}
	if err := validateRecord(batch.record); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if r := batch.record; r != nil {
		if _, ok := s.recordIDs[r.TxID]; ok {
			return fmt.Errorf("commit: %w", model.Fail(model.CodeDuplicateTransaction, r.Operation, "tx %s", r.TxID))
		}
	}

	for _, acc := range batch.accounts {
		s.accounts[acc.Address] = acc.Clone()
		if acc.Kind == model.AccountKindBalance {
			mint := acc.Balance.Mint
			if _, ok := s.holders[mint]; !ok {
				s.holders[mint] = make(map[common.Address]struct{})
			}
			s.holders[mint][acc.Address] = struct{}{}
		}
	}

	if r := batch.record; r != nil {
		c := *r
		c.Accounts = append([]common.Address(nil), r.Accounts...)
		s.records = append(s.records, &c)
		s.recordIDs[r.TxID] = struct{}{}
	}

	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
