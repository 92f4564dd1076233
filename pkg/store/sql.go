package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ubl-gate/core/pkg/receipts"
	"github.com/ubl-gate/core/pkg/tenant"
)

// SQL is a ReceiptStore backed by database/sql, compatible with both
// Postgres (via github.com/lib/pq, the teacher's driver of record) and
// the embedded modernc.org/sqlite driver used for single-process
// deployments and tests. Schema:
//
//	CREATE TABLE ubl_receipts (
//	  tenant_id TEXT NOT NULL,
//	  body_cid  TEXT NOT NULL,
//	  kind      TEXT NOT NULL,
//	  payload   TEXT NOT NULL,
//	  PRIMARY KEY (tenant_id, body_cid)
//	);
//	CREATE TABLE ubl_chain_tips (
//	  tenant_id TEXT PRIMARY KEY,
//	  tip       TEXT NOT NULL
//	);
type SQL struct {
	db *sql.DB
}

// NewSQL wraps an already-opened *sql.DB. Migration/schema setup is the
// embedder's responsibility (spec.md's HTTP/deployment boundary is out of
// scope here).
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) PutReceipt(ctx context.Context, tid tenant.ID, r receipts.Receipt) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("store: marshal receipt: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ubl_receipts (tenant_id, body_cid, kind, payload) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, body_cid) DO NOTHING`,
		string(tid), r.BodyCID, string(r.Kind), string(payload),
	)
	if err != nil {
		return fmt.Errorf("store: put receipt: %w", err)
	}
	return nil
}

func (s *SQL) GetReceipt(ctx context.Context, tid tenant.ID, bodyCID string) (receipts.Receipt, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM ubl_receipts WHERE tenant_id = $1 AND body_cid = $2`,
		string(tid), bodyCID,
	)
	var payload string
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return receipts.Receipt{}, fmt.Errorf("%w: %s", ErrNotFound, bodyCID)
		}
		return receipts.Receipt{}, fmt.Errorf("store: get receipt: %w", err)
	}
	var r receipts.Receipt
	if err := json.Unmarshal([]byte(payload), &r); err != nil {
		return receipts.Receipt{}, fmt.Errorf("store: unmarshal receipt: %w", err)
	}
	return r, nil
}

func (s *SQL) Tip(ctx context.Context, tid tenant.ID) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT tip FROM ubl_chain_tips WHERE tenant_id = $1`, string(tid))
	var tip string
	if err := row.Scan(&tip); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("store: get tip: %w", err)
	}
	return tip, nil
}

func (s *SQL) AdvanceTip(ctx context.Context, tid tenant.ID, expectedPrev, newTip string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var current string
	row := tx.QueryRowContext(ctx, `SELECT tip FROM ubl_chain_tips WHERE tenant_id = $1 FOR UPDATE`, string(tid))
	err = row.Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if expectedPrev != "" {
			return fmt.Errorf("%w: tenant %s", ErrTipConflict, tid)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO ubl_chain_tips (tenant_id, tip) VALUES ($1, $2)`, string(tid), newTip); err != nil {
			return fmt.Errorf("store: insert tip: %w", err)
		}
	case err != nil:
		return fmt.Errorf("store: read tip: %w", err)
	default:
		if current != expectedPrev {
			return fmt.Errorf("%w: tenant %s", ErrTipConflict, tid)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE ubl_chain_tips SET tip = $1 WHERE tenant_id = $2`, newTip, string(tid)); err != nil {
			return fmt.Errorf("store: update tip: %w", err)
		}
	}

	return tx.Commit()
}

var _ ReceiptStore = (*SQL)(nil)
