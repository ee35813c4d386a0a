package main

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"

	"mint-ledger/chain"
	"mint-ledger/config"
	"mint-ledger/core/model"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliKey struct {
	hex  string
	addr string
}

func newCLIKey(t *testing.T) cliKey {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return keyOf(key)
}

func keyOf(key *ecdsa.PrivateKey) cliKey {
	return cliKey{
		hex:  fmt.Sprintf("%x", crypto.FromECDSA(key)),
		addr: chain.KeyAddress(key).Hex(),
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv(config.EnvDatabasePath, "")
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvLogFormat, "")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_Keygen(t *testing.T) {
	out, err := runCLI(t, "keygen", "--format", "json", "--db", config.MemoryDatabase)
	require.NoError(t, err)

	var got struct {
		PrivateKey string `json:"privateKey"`
		Address    string `json:"address"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))

	key, err := parsePrivateKey(got.PrivateKey)
	require.NoError(t, err)
	assert.Equal(t, got.Address, chain.KeyAddress(key).Hex())
}

func TestCLI_InvalidFormat(t *testing.T) {
	_, err := runCLI(t, "keygen", "--format", "xml")
	assert.Error(t, err)
}

func TestCLI_Resolve(t *testing.T) {
	mint := "0x1111111111111111111111111111111111111111"
	owner := "0x2222222222222222222222222222222222222222"

	out, err := runCLI(t, "resolve", mint, owner, "--db", config.MemoryDatabase)
	require.NoError(t, err)

	want, err := model.ParseAndResolve(mint, owner)
	require.NoError(t, err)
	assert.Equal(t, want.Hex()+"\n", out)

	_, err = runCLI(t, "resolve", "nope", owner, "--db", config.MemoryDatabase)
	assert.ErrorIs(t, err, model.ErrMalformedKey)
}

func TestCLI_MintAndTransferFlow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "ledger.db")
	wallet, mint, to := newCLIKey(t), newCLIKey(t), newCLIKey(t)

	_, err := runCLI(t, "--db", db, "init-mint", "--mint-key", mint.hex, "--payer-key", wallet.hex, "--decimals", "0")
	require.NoError(t, err)

	_, err = runCLI(t, "--db", db, "mint-to", "--authority-key", wallet.hex, "--mint", mint.addr, "--create")
	require.NoError(t, err)

	balance := func(owner string) model.TokenAmount {
		out, err := runCLI(t, "--db", db, "--format", "json", "balance", "--mint", mint.addr, "--owner", owner)
		require.NoError(t, err)
		var got struct {
			TokenAmount model.TokenAmount `json:"tokenAmount"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &got))
		return got.TokenAmount
	}
	assert.Equal(t, "10", balance(wallet.addr).Amount)

	_, err = runCLI(t, "--db", db, "transfer", "--owner-key", wallet.hex, "--mint", mint.addr, "--to", to.addr, "--create")
	require.NoError(t, err)
	assert.Equal(t, "5", balance(wallet.addr).Amount)
	assert.Equal(t, "5", balance(to.addr).Amount)

	_, err = runCLI(t, "--db", db, "transfer", "--owner-key", to.hex, "--mint", mint.addr, "--to", wallet.addr, "--amount", "6")
	assert.ErrorIs(t, err, model.ErrInsufficientBalance)

	_, err = runCLI(t, "--db", db, "mint-to", "--authority-key", to.hex, "--mint", mint.addr, "--owner", to.addr)
	assert.ErrorIs(t, err, model.ErrUnauthorized)

	out, err := runCLI(t, "--db", db, "audit", "--mint", mint.addr)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	out, err = runCLI(t, "--db", db, "--format", "json", "mint-info", "--mint", mint.addr)
	require.NoError(t, err)
	var info struct {
		Supply  uint64 `json:"supply"`
		Holders []struct {
			Amount uint64 `json:"amount"`
		} `json:"holders"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, uint64(10), info.Supply)
	assert.Len(t, info.Holders, 2)

	out, err = runCLI(t, "--db", db, "--format", "json", "history")
	require.NoError(t, err)
	var history []recordView
	require.NoError(t, json.Unmarshal([]byte(out), &history))
	// init, create+mint, create+transfer, two rejections
	require.Len(t, history, 7)
	assert.Equal(t, string(model.OperationInitializeMint), history[0].Operation)
	assert.Equal(t, model.CodeUnauthorized.String(), history[6].Result)
}

func TestCLI_MetricsFlag(t *testing.T) {
	wallet, mint := newCLIKey(t), newCLIKey(t)

	out, err := runCLI(t, "--db", config.MemoryDatabase, "--metrics",
		"init-mint", "--mint-key", mint.hex, "--payer-key", wallet.hex)
	require.NoError(t, err)
	assert.Contains(t, out, "# TYPE ledger_operations_total counter")
	assert.Contains(t, out, fmt.Sprintf(`ledger_operations_total{operation=%q,result=%q} 1`,
		model.OperationInitializeMint, model.CodeOK.String()))

	out, err = runCLI(t, "--db", config.MemoryDatabase,
		"init-mint", "--mint-key", mint.hex, "--payer-key", wallet.hex)
	require.NoError(t, err)
	assert.NotContains(t, out, "ledger_operations_total")
}
