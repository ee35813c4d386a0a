package core

import (
	"mint-ledger/core/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// initializeMint creates an empty mint record. The mint identity itself must
// co-sign so that nobody can claim an address they do not hold.
func initializeMint(op model.Operation, view accountView, signers signerSet) (*outcome, error) {
	mintAddr := op.Accounts[0]
	logrus.Infof("initialize mint %s, decimals %d, authority %s", mintAddr.Hex(), op.Decimals, op.MintAuthority.Hex())

	if view.exists(mintAddr) {
		return nil, model.Fail(model.CodeAlreadyInitialized, op.Kind, "mint %s", mintAddr.Hex())
	}
	if !signers.has(mintAddr) {
		return nil, model.Fail(model.CodeUnauthorized, op.Kind, "mint identity %s did not sign", mintAddr.Hex())
	}

	mint := &model.MintRecord{
		Address:       mintAddr,
		Supply:        0,
		Decimals:      op.Decimals,
		MintAuthority: op.MintAuthority,
		IsInitialized: true,
	}
	if op.FreezeAuthority != (common.Address{}) {
		fa := op.FreezeAuthority
		mint.FreezeAuthority = &fa
	}

	return &outcome{
		writes: []*model.Account{model.NewMintAccount(mint)},
		signer: signers.payer(mintAddr),
	}, nil
}

// mintTo issues new units of a mint into one of its balance accounts.
func mintTo(op model.Operation, view accountView, signers signerSet) (*outcome, error) {
	mint, err := view.mint(op.Kind, op.Accounts[0])
	if err != nil {
		return nil, err
	}
	if !signers.has(mint.MintAuthority) {
		return nil, model.Fail(model.CodeUnauthorized, op.Kind, "signer is not mint authority %s", mint.MintAuthority.Hex())
	}

	dest, err := view.balance(op.Kind, op.Accounts[1])
	if err != nil {
		return nil, err
	}
	if dest.Mint != mint.Address {
		return nil, model.Fail(model.CodeAccountMismatch, op.Kind, "account %s belongs to mint %s", dest.Address.Hex(), dest.Mint.Hex())
	}

	amt := quantum(op.Amount, model.MintQuantum)
	if mint.Supply+amt < mint.Supply || dest.Amount+amt < dest.Amount {
		return nil, model.Fail(model.CodeOverflow, op.Kind, "minting %d", amt)
	}

	logrus.Infof("mint %d of %s to %s, supply %d", amt, mint.Address.Hex(), dest.Address.Hex(), mint.Supply)

	newMint := mint.Clone()
	newMint.Supply += amt
	newDest := dest.Clone()
	newDest.Amount += amt

	return &outcome{
		writes: []*model.Account{model.NewMintAccount(newMint), model.NewBalanceAccount(newDest)},
		signer: mint.MintAuthority,
		amount: amt,
	}, nil
}
