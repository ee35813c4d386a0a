package model

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
)

type OperationKind string

const (
	OperationInitializeMint          OperationKind = "initialize_mint"
	OperationCreateAssociatedAccount OperationKind = "create_associated_account"
	OperationMintTo                  OperationKind = "mint_to"
	OperationTransfer                OperationKind = "transfer"
)

// Operation is one ledger instruction with its ordered account references:
//
//	InitializeMint:          [mint]
//	CreateAssociatedAccount: [account, mint, owner]
//	MintTo:                  [mint, destination]
//	Transfer:                [source, destination]
type Operation struct {
	Kind     OperationKind
	Accounts []common.Address

	// InitializeMint args. A zero FreezeAuthority means none.
	Decimals        uint8
	MintAuthority   common.Address
	FreezeAuthority common.Address

	// MintTo and Transfer; zero selects the fixed quantum.
	Amount uint64
}

func InitializeMint(mint common.Address, decimals uint8, mintAuthority, freezeAuthority common.Address) Operation {
	return Operation{
		Kind:            OperationInitializeMint,
		Accounts:        []common.Address{mint},
		Decimals:        decimals,
		MintAuthority:   mintAuthority,
		FreezeAuthority: freezeAuthority,
	}
}

func CreateAssociatedAccount(account, mint, owner common.Address) Operation {
	return Operation{
		Kind:     OperationCreateAssociatedAccount,
		Accounts: []common.Address{account, mint, owner},
	}
}

func MintTo(mint, destination common.Address) Operation {
	return Operation{
		Kind:     OperationMintTo,
		Accounts: []common.Address{mint, destination},
	}
}

func Transfer(source, destination common.Address) Operation {
	return Operation{
		Kind:     OperationTransfer,
		Accounts: []common.Address{source, destination},
	}
}

// WithAmount overrides the fixed quantum of MintTo and Transfer.
func (op Operation) WithAmount(amount uint64) Operation {
	op.Amount = amount
	return op
}

// RequiredAccounts is the number of account references op.Kind expects.
func (k OperationKind) RequiredAccounts() (int, error) {
	switch k {
	case OperationInitializeMint:
		return 1, nil
	case OperationCreateAssociatedAccount:
		return 3, nil
	case OperationMintTo, OperationTransfer:
		return 2, nil
	default:
		return 0, Fail(CodeInvalidOperation, k, "unknown operation")
	}
}

func (op Operation) Validate() error {
	n, err := op.Kind.RequiredAccounts()
	if err != nil {
		return err
	}
	if len(op.Accounts) != n {
		return Fail(CodeInvalidOperation, op.Kind, "want %d accounts, got %d", n, len(op.Accounts))
	}
	for i, addr := range op.Accounts {
		if addr == (common.Address{}) {
			return Fail(CodeMalformedKey, op.Kind, "account %d is empty", i)
		}
	}
	if op.Kind == OperationInitializeMint && op.MintAuthority == (common.Address{}) {
		return Fail(CodeMalformedKey, op.Kind, "mint authority is empty")
	}
	return nil
}

// Transaction is a signed operation as submitted to the host.
type Transaction struct {
	ID         string
	Operation  Operation
	Signatures [][]byte
}

type signingPayload struct {
	ID        string
	Operation Operation
}

// SigningHash is keccak256 over the RLP encoding of (ID, Operation).
func (tx *Transaction) SigningHash() (common.Hash, error) {
	enc, err := rlp.EncodeToBytes(&signingPayload{ID: tx.ID, Operation: tx.Operation})
	if err != nil {
		return common.Hash{}, fmt.Errorf("encode signing payload: %w", err)
	}
	return common.BytesToHash(Keccak256(enc)), nil
}

// Record journals the outcome of one transaction, successful or not.
type Record struct {
	TxID      string
	Operation OperationKind
	Accounts  []common.Address
	Signer    common.Address
	Amount    uint64
	Code      ResultCode
	Timestamp uint64
}
