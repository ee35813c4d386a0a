package core

import (
	"mint-ledger/core/model"

	"github.com/sirupsen/logrus"
)

// createAssociatedAccount opens the zero balance account of (mint, owner) at
// its derived address. Any signer may pay for it.
func createAssociatedAccount(op model.Operation, view accountView, signers signerSet) (*outcome, error) {
	account, mintAddr, owner := op.Accounts[0], op.Accounts[1], op.Accounts[2]

	if _, err := view.mint(op.Kind, mintAddr); err != nil {
		return nil, err
	}

	expected, err := model.ResolveAssociatedAddress(mintAddr, owner)
	if err != nil {
		return nil, err
	}
	if expected != account {
		return nil, model.Fail(model.CodeAccountMismatch, op.Kind, "associated account is %s, got %s", expected.Hex(), account.Hex())
	}
	if view.exists(account) {
		return nil, model.Fail(model.CodeAlreadyInitialized, op.Kind, "account %s", account.Hex())
	}

	logrus.Infof("create associated account %s, mint %s, owner %s", account.Hex(), mintAddr.Hex(), owner.Hex())

	return &outcome{
		writes: []*model.Account{model.NewBalanceAccount(&model.BalanceAccount{
			Address: account,
			Mint:    mintAddr,
			Owner:   owner,
			Amount:  0,
		})},
		signer: signers[0],
	}, nil
}
