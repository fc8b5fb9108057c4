package obs

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestPGXTracerSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var tracer PGXTracer
	ctx := tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  `SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		Args: []any{"orders", "o1"},
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{Err: pgx.ErrNoRows})

	ctx = tracer.TraceQueryStart(context.Background(), nil, pgx.TraceQueryStartData{
		SQL:  `DELETE FROM documents WHERE collection = $1 AND id = $2`,
		Args: []any{"carts", "c1"},
	})
	tracer.TraceQueryEnd(ctx, nil, pgx.TraceQueryEndData{CommandTag: pgconn.NewCommandTag("DELETE 1")})

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	require.Equal(t, "pgx SELECT", spans[0].Name())
	require.Equal(t, codes.Unset, spans[0].Status().Code, "no rows is not a failure")
	require.Contains(t, spans[0].Attributes(), attribute.String("docstore.collection", "orders"))
	require.Contains(t, spans[1].Attributes(), attribute.Int64("db.rows_affected", 1))
}

func TestTruncateSQL(t *testing.T) {
	long := "SELECT " + string(make([]byte, 400))
	require.Len(t, truncateSQL(long), 303)
	require.Equal(t, "query", sqlOperation("   "))
}
