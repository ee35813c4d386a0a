package model

import (
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// AssociatedAccountTag separates associated-account derivation from every
// other keccak use in the ledger.
const AssociatedAccountTag = "mint-ledger/associated-account/v1"

func Keccak256(data ...[]byte) []byte {
	hasher := sha3.NewLegacyKeccak256()

	for _, b := range data {
		hasher.Write(b)
	}

	return hasher.Sum(nil)
}

// ResolveAssociatedAddress derives the balance account address for (mint, owner).
// Both inputs are fixed width, so distinct pairs never share a preimage.
func ResolveAssociatedAddress(mint, owner common.Address) (common.Address, error) {
	if mint == (common.Address{}) {
		return common.Address{}, Fail(CodeMalformedKey, "", "mint key is empty")
	}
	if owner == (common.Address{}) {
		return common.Address{}, Fail(CodeMalformedKey, "", "owner key is empty")
	}

	hash := Keccak256([]byte(AssociatedAccountTag), mint.Bytes(), owner.Bytes())

	return common.BytesToAddress(hash[len(hash)-common.AddressLength:]), nil
}

// ParseKey parses a hex encoded key.
func ParseKey(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, Fail(CodeMalformedKey, "", "%q is not a hex key", s)
	}
	return common.HexToAddress(s), nil
}

func ParseAndResolve(mintHex, ownerHex string) (common.Address, error) {
	mint, err := ParseKey(mintHex)
	if err != nil {
		return common.Address{}, err
	}
	owner, err := ParseKey(ownerHex)
	if err != nil {
		return common.Address{}, err
	}
	return ResolveAssociatedAddress(mint, owner)
}
