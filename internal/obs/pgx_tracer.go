package obs

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type ctxSpanKey struct{}

// pricingTables are matched in order; product_promotions precedes promotions
// so link queries are not reported against the promotions table.
var pricingTables = []string{"schema_migrations", "product_promotions", "catalog_items", "promotions"}

// PGXTracer implements pgx.QueryTracer. Spans are named after the statement
// verb and the pricing table it touches, e.g. "pgx SELECT promotions".
type PGXTracer struct{}

// TraceQueryStart starts a span for the SQL statement.
func (PGXTracer) TraceQueryStart(ctx context.Context, conn *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	op, table := sqlOperation(data.SQL), sqlTable(data.SQL)
	ctx, span := Tracer("pgx").Start(ctx, querySpanName(op, table), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.statement", truncateSQL(data.SQL)),
	)
	if op != "" {
		span.SetAttributes(attribute.String("db.operation", op))
	}
	if table != "" {
		span.SetAttributes(attribute.String("db.sql.table", table))
	}
	if conn != nil {
		if cfg := conn.Config(); cfg != nil && cfg.Database != "" {
			span.SetAttributes(attribute.String("db.name", cfg.Database))
		}
	}
	return context.WithValue(ctx, ctxSpanKey{}, span)
}

// TraceQueryEnd ends the span and records any error.
func (PGXTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	if span, ok := ctx.Value(ctxSpanKey{}).(trace.Span); ok {
		if data.Err != nil {
			span.RecordError(data.Err)
			span.SetStatus(codes.Error, "query failed")
		}
		span.SetAttributes(
			attribute.String("db.command_tag", data.CommandTag.String()),
			attribute.Int64("db.rows_affected", data.CommandTag.RowsAffected()),
		)
		span.End()
	}
}

func querySpanName(op, table string) string {
	name := "pgx"
	if op != "" {
		name += " " + op
	}
	if table != "" {
		name += " " + table
	}
	return name
}

func sqlOperation(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToUpper(fields[0])
}

func sqlTable(sql string) string {
	lower := strings.ToLower(sql)
	for _, table := range pricingTables {
		if strings.Contains(lower, table) {
			return table
		}
	}
	return ""
}

func truncateSQL(sql string) string {
	trimmed := strings.TrimSpace(sql)
	if len(trimmed) > 300 {
		return trimmed[:300] + "..."
	}
	return trimmed
}
