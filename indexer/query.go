package indexer

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
)

// DefaultLimit caps queries that do not specify a limit.
const DefaultLimit = 100

// EventFilter narrows an event query. Zero values match everything.
type EventFilter struct {
	Type       string
	Address    []byte
	FromHeight uint64
	Limit      int
}

// Event is an indexed event.
type Event struct {
	Height     uint64            `json:"height"`
	TxHash     string            `json:"txHash"`
	Index      int               `json:"index"`
	Type       string            `json:"type"`
	Address    string            `json:"address,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

// Receipt is the indexed summary of a sealed transaction.
type Receipt struct {
	TxHash    string `json:"txHash"`
	Height    uint64 `json:"height"`
	Type      string `json:"type"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Contract  string `json:"contract,omitempty"`
	Status    int    `json:"status"`
	Error     string `json:"error,omitempty"`
	BlockTime int64  `json:"blockTime"`
}

// Events returns matching events in chain order.
func (i *Indexer) Events(ctx context.Context, filter EventFilter) ([]Event, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.Type != "" {
		clauses = append(clauses, "type = ?")
		args = append(args, filter.Type)
	}
	if len(filter.Address) > 0 {
		clauses = append(clauses, "address = ?")
		args = append(args, hex.EncodeToString(filter.Address))
	}
	if filter.FromHeight > 0 {
		clauses = append(clauses, "height >= ?")
		args = append(args, filter.FromHeight)
	}
	query := `SELECT height, tx_hash, idx, type, address, attributes FROM events`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	query += " ORDER BY height ASC, idx ASC LIMIT ?"
	args = append(args, limit)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			evt     Event
			address sql.NullString
			attrs   string
		)
		if err := rows.Scan(&evt.Height, &evt.TxHash, &evt.Index, &evt.Type, &address, &attrs); err != nil {
			return nil, err
		}
		evt.Address = address.String
		if err := json.Unmarshal([]byte(attrs), &evt.Attributes); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Receipt looks up the indexed receipt for txHash.
func (i *Indexer) Receipt(ctx context.Context, txHash []byte) (*Receipt, error) {
	const query = `SELECT tx_hash, height, tx_type, sender, recipient, contract, status, error, block_time
        FROM receipts WHERE tx_hash = ?`
	var (
		rec                    Receipt
		to, contract, errorMsg sql.NullString
	)
	err := i.db.QueryRowContext(ctx, query, hex.EncodeToString(txHash)).Scan(
		&rec.TxHash, &rec.Height, &rec.Type, &rec.From, &to, &contract, &rec.Status, &errorMsg, &rec.BlockTime,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.To = to.String
	rec.Contract = contract.String
	rec.Error = errorMsg.String
	return &rec, nil
}

// ReceiptsBySender lists receipts sent from addr, newest first.
func (i *Indexer) ReceiptsBySender(ctx context.Context, addr []byte, limit int) ([]Receipt, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	const query = `SELECT tx_hash, height, tx_type, sender, recipient, contract, status, error, block_time
        FROM receipts WHERE sender = ? ORDER BY height DESC LIMIT ?`
	rows, err := i.db.QueryContext(ctx, query, hex.EncodeToString(addr), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Receipt, 0)
	for rows.Next() {
		var (
			rec                    Receipt
			to, contract, errorMsg sql.NullString
		)
		if err := rows.Scan(&rec.TxHash, &rec.Height, &rec.Type, &rec.From, &to, &contract, &rec.Status, &errorMsg, &rec.BlockTime); err != nil {
			return nil, err
		}
		rec.To = to.String
		rec.Contract = contract.String
		rec.Error = errorMsg.String
		out = append(out, rec)
	}
	return out, rows.Err()
}
