package database

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/irfndi/celebrum-ledger/internal/database"

// QueryLogger receives one event per completed ledger query.
type QueryLogger interface {
	LogLedgerQuery(table string, filter string, duration int64, rows int)
}

// TracedPool wraps a LedgerPool with an OpenTelemetry span per query.
type TracedPool struct {
	pool   LedgerPool
	tracer trace.Tracer
}

// NewTracedPool creates a traced pool using the global tracer provider.
func NewTracedPool(pool LedgerPool) *TracedPool {
	return &TracedPool{
		pool:   pool,
		tracer: otel.Tracer(tracerName),
	}
}

// Query runs sql inside a db.query span. The span ends when the query
// returns; row iteration is not included.
func (p *TracedPool) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	ctx, span := p.tracer.Start(ctx, "db.query",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operationOf(sql)),
			attribute.String("db.statement", sql),
			attribute.Int("db.args", len(args)),
		),
	)
	defer span.End()

	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		RecordDatabaseError(ctx, err, "query")
	}
	return rows, err
}

// RecordDatabaseError marks the active span as failed.
func RecordDatabaseError(ctx context.Context, err error, operation string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("db.error.operation", operation)))
	span.SetStatus(codes.Error, err.Error())
}

// AddDatabaseSpanAttributes annotates the active span with a table and row count.
func AddDatabaseSpanAttributes(ctx context.Context, table string, rows int) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("db.sql.table", table),
		attribute.Int("db.rows", rows),
	)
}

// InstrumentedRepository decorates LedgerRepository.Select with a ledger.select
// span and a QueryLogger event.
type InstrumentedRepository struct {
	repo   *LedgerRepository
	tracer trace.Tracer
	logger QueryLogger
}

// NewInstrumentedRepository wraps repo. logger may be nil.
func NewInstrumentedRepository(repo *LedgerRepository, logger QueryLogger) *InstrumentedRepository {
	return &InstrumentedRepository{
		repo:   repo,
		tracer: otel.Tracer(tracerName),
		logger: logger,
	}
}

// Select implements the ledger store read with tracing and logging.
func (r *InstrumentedRepository) Select(ctx context.Context, table LedgerTable, q LedgerQuery) ([]json.RawMessage, error) {
	ctx, span := r.tracer.Start(ctx, "ledger.select", trace.WithAttributes(
		attribute.String("ledger.table", string(table)),
		attribute.String("ledger.filter", q.String()),
	))
	defer span.End()

	start := time.Now()
	rows, err := r.repo.Select(ctx, table, q)
	if err != nil {
		RecordDatabaseError(ctx, err, "select")
		return nil, err
	}

	AddDatabaseSpanAttributes(ctx, string(table), len(rows))
	if r.logger != nil {
		r.logger.LogLedgerQuery(string(table), q.String(), time.Since(start).Milliseconds(), len(rows))
	}
	return rows, nil
}

func operationOf(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}
