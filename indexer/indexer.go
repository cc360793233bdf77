package indexer

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"mpachain/core/types"
)

// ErrNotFound is returned when a receipt is not indexed.
var ErrNotFound = errors.New("indexer: not found")

// Indexer persists sealed receipts and their events in SQLite so that
// history can be queried without replaying the chain.
type Indexer struct {
	db *sql.DB
}

// Open creates or opens the index database at path.
func Open(path string) (*Indexer, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("indexer: path required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)
	idx := &Indexer{db: db}
	if err := idx.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

func (i *Indexer) init() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS receipts (
            tx_hash TEXT PRIMARY KEY,
            height INTEGER NOT NULL,
            tx_type TEXT NOT NULL,
            sender TEXT NOT NULL,
            recipient TEXT,
            contract TEXT,
            status INTEGER NOT NULL,
            error TEXT,
            block_time INTEGER NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS receipts_sender ON receipts(sender);`,
		`CREATE TABLE IF NOT EXISTS events (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            height INTEGER NOT NULL,
            tx_hash TEXT NOT NULL,
            idx INTEGER NOT NULL,
            type TEXT NOT NULL,
            address TEXT,
            attributes TEXT NOT NULL,
            UNIQUE(tx_hash, idx)
        );`,
		`CREATE INDEX IF NOT EXISTS events_type ON events(type);`,
		`CREATE INDEX IF NOT EXISTS events_address ON events(address);`,
	}
	for _, stmt := range schema {
		if _, err := i.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (i *Indexer) Close() error {
	return i.db.Close()
}

// eventAddress picks the contract an event is about: the agreement when
// present, otherwise the factory.
func eventAddress(evt types.Event) string {
	if addr := evt.Attributes["mpa"]; addr != "" {
		return addr
	}
	return evt.Attributes["factory"]
}

// IndexReceipt stores receipt and its events. Re-indexing the same receipt is
// a no-op.
func (i *Indexer) IndexReceipt(ctx context.Context, block *types.Block, receipt *types.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("indexer: nil receipt")
	}
	var blockTime int64
	if block != nil && block.Header != nil {
		blockTime = block.Header.Timestamp
	}
	txHash := hex.EncodeToString(receipt.TxHash)

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	const insertReceipt = `INSERT OR IGNORE INTO receipts
        (tx_hash, height, tx_type, sender, recipient, contract, status, error, block_time)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, insertReceipt,
		txHash,
		receipt.BlockHeight,
		receipt.Type.String(),
		hex.EncodeToString(receipt.From),
		nullableHex(receipt.To),
		nullableHex(receipt.ContractAddress),
		int(receipt.Status),
		nullableString(receipt.Error),
		blockTime,
	); err != nil {
		return fmt.Errorf("indexer: insert receipt: %w", err)
	}

	const insertEvent = `INSERT OR IGNORE INTO events
        (height, tx_hash, idx, type, address, attributes)
        VALUES (?, ?, ?, ?, ?, ?)`
	for n, evt := range receipt.Events {
		attrs, err := json.Marshal(evt.Attributes)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, insertEvent,
			receipt.BlockHeight, txHash, n, evt.Type, nullableString(eventAddress(evt)), string(attrs),
		); err != nil {
			return fmt.Errorf("indexer: insert event: %w", err)
		}
	}
	return tx.Commit()
}

func nullableHex(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: hex.EncodeToString(b), Valid: true}
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
