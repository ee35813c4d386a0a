package chain

import (
	"context"
	"crypto/ecdsa"
	"path/filepath"
	"sync"
	"testing"

	"mint-ledger/core"
	"mint-ledger/core/model"
	"mint-ledger/core/store"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) *ecdsa.PrivateKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newSQLiteHost(t *testing.T) *Host {
	st, err := store.OpenSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewHost(core.NewLedger(st))
}

func TestSignAndRecover(t *testing.T) {
	k1, k2 := newKey(t), newKey(t)
	tx := NewTransaction(model.Transfer(KeyAddress(k1), KeyAddress(k2)))

	require.NoError(t, Sign(tx, k1))
	require.NoError(t, Sign(tx, k2))

	signers, err := Signers(tx)
	require.NoError(t, err)
	assert.Equal(t, []common.Address{KeyAddress(k1), KeyAddress(k2)}, signers)
}

func TestNewTransaction_UUIDv7(t *testing.T) {
	tx := NewTransaction(model.MintTo(common.HexToAddress("0x01"), common.HexToAddress("0x02")))
	id, err := uuid.Parse(tx.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.NotEqual(t, tx.ID, NewTransaction(tx.Operation).ID)
}

func TestSigners_Rejects(t *testing.T) {
	k := newKey(t)

	unsigned := NewTransaction(model.MintTo(KeyAddress(k), KeyAddress(k)))
	_, err := Signers(unsigned)
	assert.ErrorIs(t, err, model.ErrInvalidSignature)

	short := NewTransaction(unsigned.Operation)
	short.Signatures = [][]byte{{1, 2, 3}}
	_, err = Signers(short)
	assert.ErrorIs(t, err, model.ErrInvalidSignature)

	dup := NewTransaction(unsigned.Operation)
	require.NoError(t, Sign(dup, k))
	require.NoError(t, Sign(dup, k))
	_, err = Signers(dup)
	assert.ErrorIs(t, err, model.ErrInvalidSignature)
}

func TestSigners_TamperedOperationChangesSigner(t *testing.T) {
	k := newKey(t)
	tx := NewTransaction(model.Transfer(common.HexToAddress("0x0a"), common.HexToAddress("0x0b")))
	require.NoError(t, Sign(tx, k))

	tx.Operation = tx.Operation.WithAmount(1000)
	signers, err := Signers(tx)
	require.NoError(t, err)
	require.Len(t, signers, 1)
	assert.NotEqual(t, KeyAddress(k), signers[0])
}

// TestHost_TokenContractFlow mirrors the observed client flow: create a mint
// and the wallet's associated account, mint once, then transfer once to a
// freshly created account of a new wallet.
func TestHost_TokenContractFlow(t *testing.T) {
	h := newSQLiteHost(t)
	ctx := context.Background()
	wallet, mintIdentity, toWallet := newKey(t), newKey(t), newKey(t)
	mint := KeyAddress(mintIdentity)

	_, err := h.Execute(ctx, model.InitializeMint(mint, 0, KeyAddress(wallet), KeyAddress(wallet)), wallet, mintIdentity)
	require.NoError(t, err)

	ata, err := model.ResolveAssociatedAddress(mint, KeyAddress(wallet))
	require.NoError(t, err)
	_, err = h.Execute(ctx, model.CreateAssociatedAccount(ata, mint, KeyAddress(wallet)), wallet)
	require.NoError(t, err)

	_, err = h.Execute(ctx, model.MintTo(mint, ata), wallet)
	require.NoError(t, err)

	minted, err := h.Ledger().TokenAmount(ctx, ata)
	require.NoError(t, err)
	assert.Equal(t, "10", minted.Amount)

	toATA, err := model.ResolveAssociatedAddress(mint, KeyAddress(toWallet))
	require.NoError(t, err)
	_, err = h.Execute(ctx, model.CreateAssociatedAccount(toATA, mint, KeyAddress(toWallet)), wallet)
	require.NoError(t, err)

	rec, err := h.Execute(ctx, model.Transfer(ata, toATA), wallet)
	require.NoError(t, err)
	assert.Equal(t, model.CodeOK, rec.Code)

	left, err := h.Ledger().TokenAmount(ctx, ata)
	require.NoError(t, err)
	assert.Equal(t, "5", left.Amount)
	got, err := h.Ledger().TokenAmount(ctx, toATA)
	require.NoError(t, err)
	assert.Equal(t, "5", got.Amount)

	mintRec, err := h.Ledger().Mint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), mintRec.Supply)
	require.NotNil(t, mintRec.FreezeAuthority)
	assert.Equal(t, KeyAddress(wallet), *mintRec.FreezeAuthority)
	require.NoError(t, h.Ledger().CheckConservation(ctx, mint))
}

func TestHost_ForgedTransferLeavesBalances(t *testing.T) {
	h := newSQLiteHost(t)
	ctx := context.Background()
	owner, mintIdentity, thief := newKey(t), newKey(t), newKey(t)
	mint := KeyAddress(mintIdentity)

	_, err := h.Execute(ctx, model.InitializeMint(mint, 0, KeyAddress(owner), common.Address{}), owner, mintIdentity)
	require.NoError(t, err)
	src, _ := model.ResolveAssociatedAddress(mint, KeyAddress(owner))
	dst, _ := model.ResolveAssociatedAddress(mint, KeyAddress(thief))
	_, err = h.Execute(ctx, model.CreateAssociatedAccount(src, mint, KeyAddress(owner)), owner)
	require.NoError(t, err)
	_, err = h.Execute(ctx, model.CreateAssociatedAccount(dst, mint, KeyAddress(thief)), thief)
	require.NoError(t, err)
	_, err = h.Execute(ctx, model.MintTo(mint, src), owner)
	require.NoError(t, err)

	_, err = h.Execute(ctx, model.Transfer(src, dst), thief)
	require.ErrorIs(t, err, model.ErrUnauthorized)

	srcBal, err := h.Ledger().BalanceAccount(ctx, src)
	require.NoError(t, err)
	dstBal, err := h.Ledger().BalanceAccount(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), srcBal.Amount)
	assert.Equal(t, uint64(0), dstBal.Amount)
}

func TestHost_ReplayRejected(t *testing.T) {
	h := NewHost(core.NewLedger(store.NewMemoryStore()))
	ctx := context.Background()
	payer, mintIdentity := newKey(t), newKey(t)

	tx := NewTransaction(model.InitializeMint(KeyAddress(mintIdentity), 0, KeyAddress(payer), common.Address{}))
	require.NoError(t, Sign(tx, payer))
	require.NoError(t, Sign(tx, mintIdentity))

	_, err := h.Submit(ctx, tx)
	require.NoError(t, err)
	_, err = h.Submit(ctx, tx)
	assert.ErrorIs(t, err, model.ErrDuplicateTransaction)
}

func TestHost_CancelledContext(t *testing.T) {
	h := NewHost(core.NewLedger(store.NewMemoryStore()))
	payer, mintIdentity := newKey(t), newKey(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Execute(ctx, model.InitializeMint(KeyAddress(mintIdentity), 0, KeyAddress(payer), common.Address{}), payer, mintIdentity)
	require.ErrorIs(t, err, context.Canceled)

	_, err = h.Ledger().Mint(context.Background(), KeyAddress(mintIdentity))
	assert.ErrorIs(t, err, model.ErrAccountNotFound)
}

func TestHost_ConcurrentTransfersConserveSupply(t *testing.T) {
	h := NewHost(core.NewLedger(store.NewMemoryStore()))
	ctx := context.Background()
	owner, mintIdentity, peer := newKey(t), newKey(t), newKey(t)
	mint := KeyAddress(mintIdentity)

	_, err := h.Execute(ctx, model.InitializeMint(mint, 0, KeyAddress(owner), common.Address{}), owner, mintIdentity)
	require.NoError(t, err)
	src, _ := model.ResolveAssociatedAddress(mint, KeyAddress(owner))
	dst, _ := model.ResolveAssociatedAddress(mint, KeyAddress(peer))
	_, err = h.Execute(ctx, model.CreateAssociatedAccount(src, mint, KeyAddress(owner)), owner)
	require.NoError(t, err)
	_, err = h.Execute(ctx, model.CreateAssociatedAccount(dst, mint, KeyAddress(peer)), owner)
	require.NoError(t, err)
	_, err = h.Execute(ctx, model.MintTo(mint, src).WithAmount(50), owner)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.Execute(ctx, model.Transfer(src, dst), owner)
		}()
	}
	wg.Wait()

	srcBal, err := h.Ledger().BalanceAccount(ctx, src)
	require.NoError(t, err)
	dstBal, err := h.Ledger().BalanceAccount(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), srcBal.Amount)
	assert.Equal(t, uint64(50), dstBal.Amount)
	require.NoError(t, h.Ledger().CheckConservation(ctx, mint))
}
