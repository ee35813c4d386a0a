package core

import (
	"mint-ledger/core/model"

	"github.com/sirupsen/logrus"
)

// transfer moves units between two balance accounts of the same mint. Both
// sides are written in one batch, so the source is never debited alone.
func transfer(op model.Operation, view accountView, signers signerSet) (*outcome, error) {
	src, err := view.balance(op.Kind, op.Accounts[0])
	if err != nil {
		return nil, err
	}
	dst, err := view.balance(op.Kind, op.Accounts[1])
	if err != nil {
		return nil, err
	}

	if !signers.has(src.Owner) {
		return nil, model.Fail(model.CodeUnauthorized, op.Kind, "signer is not owner %s", src.Owner.Hex())
	}
	if src.Mint != dst.Mint {
		return nil, model.Fail(model.CodeMintMismatch, op.Kind, "source mint %s, destination mint %s", src.Mint.Hex(), dst.Mint.Hex())
	}

	amt := quantum(op.Amount, model.TransferQuantum)
	if src.Amount < amt {
		return nil, model.Fail(model.CodeInsufficientBalance, op.Kind, "balance %d, need %d", src.Amount, amt)
	}

	if src.Address == dst.Address {
		logrus.Infof("transfer %d to self at %s, nothing to move", amt, src.Address.Hex())
		return &outcome{signer: src.Owner, amount: amt}, nil
	}

	if dst.Amount+amt < dst.Amount {
		return nil, model.Fail(model.CodeOverflow, op.Kind, "crediting %d", amt)
	}

	logrus.Infof("transfer %d of %s from %s to %s", amt, src.Mint.Hex(), src.Address.Hex(), dst.Address.Hex())

	newSrc := src.Clone()
	newSrc.Amount -= amt
	newDst := dst.Clone()
	newDst.Amount += amt

	return &outcome{
		writes: []*model.Account{model.NewBalanceAccount(newSrc), model.NewBalanceAccount(newDst)},
		signer: src.Owner,
		amount: amt,
	}, nil
}
