package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// LedgerTable names a ledger table the repository is allowed to read.
type LedgerTable string

const (
	// TradesTable holds one row per entry or exit event.
	TradesTable LedgerTable = "trades"
	// ShadowTable holds the model's shadow predictions.
	ShadowTable LedgerTable = "ml_shadow_logs"
)

// Valid reports whether t is a known ledger table.
func (t LedgerTable) Valid() bool {
	return t == TradesTable || t == ShadowTable
}

// LedgerQuery narrows a ledger read. Nil fields are not filtered on.
// From and To are inclusive bounds on the ts column.
type LedgerQuery struct {
	Symbol *string
	From   *time.Time
	To     *time.Time
}

// String renders the query for logs and span attributes.
func (q LedgerQuery) String() string {
	parts := []string{"symbol=*", "from=*", "to=*"}
	if q.Symbol != nil {
		parts[0] = "symbol=" + *q.Symbol
	}
	if q.From != nil {
		parts[1] = "from=" + q.From.UTC().Format(time.RFC3339)
	}
	if q.To != nil {
		parts[2] = "to=" + q.To.UTC().Format(time.RFC3339)
	}
	return strings.Join(parts, " ")
}

// LedgerPool is the subset of pgxpool.Pool the ledger repository needs.
// Both *pgxpool.Pool and pgxmock pools satisfy it.
type LedgerPool interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

// LedgerRepository reads raw ledger rows. Each row is returned as the JSON
// object Postgres builds with to_jsonb, so columns the ledger grows later
// flow through without a schema change here.
type LedgerRepository struct {
	pool LedgerPool
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(pool LedgerPool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// BuildSelect renders the select statement and its positional arguments.
func BuildSelect(table LedgerTable, q LedgerQuery) (string, []interface{}, error) {
	if !table.Valid() {
		return "", nil, fmt.Errorf("unknown ledger table %q", table)
	}

	var (
		conds []string
		args  []interface{}
	)
	if q.Symbol != nil {
		args = append(args, *q.Symbol)
		conds = append(conds, fmt.Sprintf("t.symbol = $%d", len(args)))
	}
	if q.From != nil {
		args = append(args, q.From.UTC())
		conds = append(conds, fmt.Sprintf("t.ts >= $%d", len(args)))
	}
	if q.To != nil {
		args = append(args, q.To.UTC())
		conds = append(conds, fmt.Sprintf("t.ts <= $%d", len(args)))
	}

	var b strings.Builder
	b.WriteString("SELECT to_jsonb(t) FROM ")
	b.WriteString(string(table))
	b.WriteString(" t")
	if len(conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY t.ts ASC NULLS LAST")
	return b.String(), args, nil
}

// Select returns every row of table matching q, ordered by ts ascending.
func (r *LedgerRepository) Select(ctx context.Context, table LedgerTable, q LedgerQuery) ([]json.RawMessage, error) {
	query, args, err := BuildSelect(table, q)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	result := make([]json.RawMessage, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		// pgx may reuse the scan buffer
		row := make(json.RawMessage, len(raw))
		copy(row, raw)
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s rows: %w", table, err)
	}
	return result, nil
}
