package model

import (
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

// TokenAmount is the parsed view of a balance, scaled by the mint's decimals.
type TokenAmount struct {
	Amount         string `json:"amount"`
	Decimals       uint8  `json:"decimals"`
	UIAmountString string `json:"uiAmountString"`
}

func UIAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

func NewTokenAmount(amount uint64, decimals uint8) TokenAmount {
	return TokenAmount{
		Amount:         strconv.FormatUint(amount, 10),
		Decimals:       decimals,
		UIAmountString: UIAmount(amount, decimals).String(),
	}
}
