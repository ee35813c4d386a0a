package chain

import (
	"crypto/ecdsa"
	"fmt"

	"mint-ledger/core/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Sign appends key's signature over tx's signing hash.
func Sign(tx *model.Transaction, key *ecdsa.PrivateKey) error {
	hash, err := tx.SigningHash()
	if err != nil {
		return err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return fmt.Errorf("sign transaction %s: %w", tx.ID, err)
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// Signers recovers the key behind every signature of tx, in signature order.
// A signature that does not recover, or repeats a signer, fails the whole
// transaction.
func Signers(tx *model.Transaction) ([]common.Address, error) {
	if len(tx.Signatures) == 0 {
		return nil, model.Fail(model.CodeInvalidSignature, tx.Operation.Kind, "transaction %s is unsigned", tx.ID)
	}
	hash, err := tx.SigningHash()
	if err != nil {
		return nil, err
	}

	signers := make([]common.Address, 0, len(tx.Signatures))
	seen := make(map[common.Address]struct{}, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		if len(sig) != crypto.SignatureLength {
			return nil, model.Fail(model.CodeInvalidSignature, tx.Operation.Kind, "signature %d has length %d", i, len(sig))
		}
		pub, err := crypto.SigToPub(hash.Bytes(), sig)
		if err != nil {
			return nil, model.Fail(model.CodeInvalidSignature, tx.Operation.Kind, "signature %d: %v", i, err)
		}
		addr := crypto.PubkeyToAddress(*pub)
		if _, dup := seen[addr]; dup {
			return nil, model.Fail(model.CodeInvalidSignature, tx.Operation.Kind, "duplicate signer %s", addr.Hex())
		}
		seen[addr] = struct{}{}
		signers = append(signers, addr)
	}
	return signers, nil
}

// KeyAddress is the ledger key of a private key.
func KeyAddress(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}
