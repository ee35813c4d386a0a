package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"mint-ledger/core/model"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	sqlite3 "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStore persists the ledger in a SQLite database. Account payloads are
// RLP encoded; address, kind, mint and owner are kept as columns for lookups.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// columnKey is the text form of an address in the address, mint and owner
// columns. Lowercase hex sorts the same way as the address bytes.
func columnKey(addr common.Address) string {
	return strings.ToLower(addr.Hex())
}

// balanceData and mintData are the RLP payloads of the accounts table.
type mintData struct {
	Supply          uint64
	Decimals        uint8
	MintAuthority   common.Address
	FreezeAuthority common.Address
	HasFreeze       bool
	IsInitialized   bool
}

type balanceData struct {
	Mint   common.Address
	Owner  common.Address
	Amount uint64
}

type recordData struct {
	Accounts []common.Address
	Signer   common.Address
	Amount   uint64
}

// OpenSQLite creates or opens the database at path and applies the schema.
// Safe to call repeatedly on the same file.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Load(ctx context.Context, addr common.Address) (*model.Account, error) {
	var (
		kind uint8
		data []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT kind, data FROM accounts WHERE address = ?`, columnKey(addr),
	).Scan(&kind, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", addr.Hex(), err)
	}
	return decodeAccount(addr, model.AccountKind(kind), data)
}

func (s *SQLiteStore) BalanceAccountsByMint(ctx context.Context, mint common.Address) ([]*model.BalanceAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, data FROM accounts
		WHERE mint = ? AND kind = ?
		ORDER BY address
	`, columnKey(mint), uint8(model.AccountKindBalance))
	if err != nil {
		return nil, fmt.Errorf("list balance accounts: %w", err)
	}
	defer rows.Close()

	var res []*model.BalanceAccount
	for rows.Next() {
		var (
			addrHex string
			data    []byte
		)
		if err := rows.Scan(&addrHex, &data); err != nil {
			return nil, fmt.Errorf("list balance accounts: scan: %w", err)
		}
		acc, err := decodeAccount(common.HexToAddress(addrHex), model.AccountKindBalance, data)
		if err != nil {
			return nil, err
		}
		res = append(res, acc.Balance)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list balance accounts: %w", err)
	}
	return res, nil
}

func (s *SQLiteStore) HasRecord(ctx context.Context, txID string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE tx_id = ?`, txID,
	).Scan(&n); err != nil {
		return false, fmt.Errorf("has record: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Records(ctx context.Context) ([]*model.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tx_id, operation, code, timestamp, data FROM records
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	defer rows.Close()

	var res []*model.Record
	for rows.Next() {
		var (
			r    model.Record
			op   string
			code int8
			ts   int64
			data []byte
		)
		if err := rows.Scan(&r.TxID, &op, &code, &ts, &data); err != nil {
			return nil, fmt.Errorf("read records: scan: %w", err)
		}
		var rd recordData
		if err := rlp.DecodeBytes(data, &rd); err != nil {
			return nil, fmt.Errorf("read records: decode %s: %w", r.TxID, err)
		}
		r.Operation = model.OperationKind(op)
		r.Code = model.ResultCode(code)
		r.Timestamp = uint64(ts)
		r.Accounts = rd.Accounts
		r.Signer = rd.Signer
		r.Amount = rd.Amount
		res = append(res, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	return res, nil
}

// Commit writes the batch inside a single transaction.
func (s *SQLiteStore) Commit(ctx context.Context, batch *Batch) error {
	if batch == nil {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, acc := range batch.accounts {
		if err := validateAccount(acc); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		mint, owner, data, err := encodeAccount(acc)
		if err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (address, kind, mint, owner, data)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(address) DO UPDATE SET
				kind = excluded.kind,
				mint = excluded.mint,
				owner = excluded.owner,
				data = excluded.data
		`, columnKey(acc.Address), uint8(acc.Kind), mint, owner, data); err != nil {
			return fmt.Errorf("commit: write account %s: %w", acc.Address.Hex(), err)
		}
	}

	if r := batch.record; r != nil {
		if err := validateRecord(r); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		data, err := rlp.EncodeToBytes(&recordData{Accounts: r.Accounts, Signer: r.Signer, Amount: r.Amount})
		if err != nil {
			return fmt.Errorf("commit: encode record: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO records (tx_id, operation, code, timestamp, data)
			VALUES (?, ?, ?, ?, ?)
		`, r.TxID, string(r.Operation), int8(r.Code), int64(r.Timestamp), data); err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return fmt.Errorf("commit: %w", model.Fail(model.CodeDuplicateTransaction, r.Operation, "tx %s", r.TxID))
			}
			return fmt.Errorf("commit: write record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func encodeAccount(acc *model.Account) (mint, owner string, data []byte, err error) {
	switch acc.Kind {
	case model.AccountKindMint:
		m := acc.Mint
		md := mintData{
			Supply:        m.Supply,
			Decimals:      m.Decimals,
			MintAuthority: m.MintAuthority,
			IsInitialized: m.IsInitialized,
		}
		if m.FreezeAuthority != nil {
			md.FreezeAuthority = *m.FreezeAuthority
			md.HasFreeze = true
		}
		data, err = rlp.EncodeToBytes(&md)
		return columnKey(acc.Address), "", data, err
	case model.AccountKindBalance:
		b := acc.Balance
		data, err = rlp.EncodeToBytes(&balanceData{Mint: b.Mint, Owner: b.Owner, Amount: b.Amount})
		return columnKey(b.Mint), columnKey(b.Owner), data, err
	}
	return "", "", nil, fmt.Errorf("%w: unknown account kind %d", ErrInvalidWrite, acc.Kind)
}

func decodeAccount(addr common.Address, kind model.AccountKind, data []byte) (*model.Account, error) {
	switch kind {
	case model.AccountKindMint:
		var md mintData
		if err := rlp.DecodeBytes(data, &md); err != nil {
			return nil, fmt.Errorf("decode mint %s: %w", addr.Hex(), err)
		}
		m := &model.MintRecord{
			Address:       addr,
			Supply:        md.Supply,
			Decimals:      md.Decimals,
			MintAuthority: md.MintAuthority,
			IsInitialized: md.IsInitialized,
		}
		if md.HasFreeze {
			fa := md.FreezeAuthority
			m.FreezeAuthority = &fa
		}
		return model.NewMintAccount(m), nil
	case model.AccountKindBalance:
		var bd balanceData
		if err := rlp.DecodeBytes(data, &bd); err != nil {
			return nil, fmt.Errorf("decode balance account %s: %w", addr.Hex(), err)
		}
		return model.NewBalanceAccount(&model.BalanceAccount{
			Address: addr,
			Mint:    bd.Mint,
			Owner:   bd.Owner,
			Amount:  bd.Amount,
		}), nil
	}
	return nil, fmt.Errorf("decode account %s: unknown kind %d", addr.Hex(), kind)
}
