package model

import (
	"github.com/ethereum/go-ethereum/common"
)

const (
	// MintQuantum is the amount issued by one MintTo call when the operation
	// does not carry an explicit amount.
	MintQuantum uint64 = 10
	// TransferQuantum is the amount moved by one Transfer call when the
	// operation does not carry an explicit amount.
	TransferQuantum uint64 = 5
)

type MintRecord struct {
	Address         common.Address
	Supply          uint64
	Decimals        uint8
	MintAuthority   common.Address
	FreezeAuthority *common.Address
	IsInitialized   bool
}

func (m *MintRecord) Clone() *MintRecord {
	if m == nil {
		return nil
	}
	c := *m
	if m.FreezeAuthority != nil {
		fa := *m.FreezeAuthority
		c.FreezeAuthority = &fa
	}
	return &c
}
