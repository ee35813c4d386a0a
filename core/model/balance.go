package model

import (
	"github.com/ethereum/go-ethereum/common"
)

type BalanceAccount struct {
	Address common.Address
	Mint    common.Address
	Owner   common.Address
	Amount  uint64
}

func (b *BalanceAccount) Clone() *BalanceAccount {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

type AccountKind uint8

const (
	AccountKindUnknown AccountKind = iota
	AccountKindMint
	AccountKindBalance
)

func (k AccountKind) String() string {
	switch k {
	case AccountKindMint:
		return "mint"
	case AccountKindBalance:
		return "balance"
	default:
		return "unknown"
	}
}

// Account is one entry of the ledger's address space. Exactly one of Mint
// and Balance is set, matching Kind.
type Account struct {
	Address common.Address
	Kind    AccountKind
	Mint    *MintRecord
	Balance *BalanceAccount
}

func NewMintAccount(m *MintRecord) *Account {
	return &Account{Address: m.Address, Kind: AccountKindMint, Mint: m}
}

func NewBalanceAccount(b *BalanceAccount) *Account {
	return &Account{Address: b.Address, Kind: AccountKindBalance, Balance: b}
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	return &Account{
		Address: a.Address,
		Kind:    a.Kind,
		Mint:    a.Mint.Clone(),
		Balance: a.Balance.Clone(),
	}
}
