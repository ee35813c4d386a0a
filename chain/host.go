package chain

import (
	"context"
	"crypto/ecdsa"
	"sync"

	"mint-ledger/core"
	"mint-ledger/core/model"
	"mint-ledger/utils/generics/must"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Host is the execution environment of the ledger: it verifies who signed a
// transaction and runs one transaction at a time, so handlers always see
// exclusive access to the accounts they touch.
type Host struct {
	ledger *core.Ledger
	mu     sync.Mutex
}

func NewHost(ledger *core.Ledger) *Host {
	return &Host{ledger: ledger}
}

func (h *Host) Ledger() *core.Ledger {
	return h.ledger
}

// NewTransaction wraps op in an unsigned transaction with a fresh UUIDv7 id.
func NewTransaction(op model.Operation) *model.Transaction {
	return &model.Transaction{
		ID:        must.Must(uuid.NewV7()).String(),
		Operation: op,
	}
}

// Submit verifies the signatures of tx and hands it to the ledger. Transactions
// with bad signatures never reach the ledger and are not journaled.
func (h *Host) Submit(ctx context.Context, tx *model.Transaction) (*model.Record, error) {
	signers, err := Signers(tx)
	if err != nil {
		logrus.Warnf("reject transaction %s: %v", tx.ID, err)
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.ledger.HandleTransaction(ctx, tx.ID, tx.Operation, signers)
}

// Execute signs op with keys in order and submits it.
func (h *Host) Execute(ctx context.Context, op model.Operation, keys ...*ecdsa.PrivateKey) (*model.Record, error) {
	tx := NewTransaction(op)
	for _, key := range keys {
		if err := Sign(tx, key); err != nil {
			return nil, err
		}
	}
	return h.Submit(ctx, tx)
}
