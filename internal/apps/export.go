package apps

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/bodygate/internal/config"
	"github.com/af-corp/bodygate/internal/gateway"
	"github.com/jackc/pgx/v5"
)

// Querier runs a query. *pgxpool.Pool and *pgx.Conn satisfy it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Export runs the configured query and streams the result as CSV, a header
// line followed by one line per row. The rows stay open while the body is
// drained and are closed by the drain.
type Export struct {
	db      Querier
	cfg     func() *config.Config
	breaker *Breaker
	logger  *slog.Logger
}

// NewExport returns the export application. db may be nil when no database
// is configured; every request then gets 503.
func NewExport(db Querier, cfg func() *config.Config, logger *slog.Logger) *Export {
	bc := cfg().Apps.ExportBreaker
	return &Export{
		db:      db,
		cfg:     cfg,
		breaker: NewBreaker(bc.FailureThreshold, bc.RecoveryInterval),
		logger:  logger,
	}
}

func (e *Export) Serve(env *gateway.Env) (*gateway.Response, error) {
	if e.db == nil {
		return text(http.StatusServiceUnavailable, "export database not configured\n"), nil
	}
	if !e.breaker.Allow() {
		retry := int(math.Ceil(e.breaker.RetryAfter().Seconds()))
		return text(http.StatusServiceUnavailable, "export database unavailable\n", "Retry-After", strconv.Itoa(max(retry, 1))), nil
	}

	rows, err := e.db.Query(env.Request.Context(), e.cfg().Apps.ExportQuery)
	if err != nil {
		e.breaker.RecordFailure()
		e.logger.Warn("export query failed", "error", err, "request_id", env.RequestID, "breaker", e.breaker.State().String())
		return nil, fmt.Errorf("export query: %w", err)
	}

	return &gateway.Response{
		Status: http.StatusOK,
		Headers: gateway.H(
			"Content-Type", "text/csv; charset=utf-8",
			"Content-Disposition", `attachment; filename="export.csv"`,
		),
		Body: &csvRows{rows: rows, breaker: e.breaker},
	}, nil
}

// csvRows is an Iterable over query rows. Close releases the rows and
// reports the outcome to the breaker.
type csvRows struct {
	rows      pgx.Rows
	breaker   *Breaker
	buf       bytes.Buffer
	w         *csv.Writer
	decodeErr error
}

func (c *csvRows) ForEach(yield func([]byte) error) error {
	c.w = csv.NewWriter(&c.buf)

	fields := c.rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	if err := c.line(header, yield); err != nil {
		return err
	}

	record := make([]string, len(fields))
	for c.rows.Next() {
		values, err := c.rows.Values()
		if err != nil {
			c.decodeErr = err
			return fmt.Errorf("decode row: %w", err)
		}
		record = record[:0]
		for _, v := range values {
			record = append(record, formatValue(v))
		}
		if err := c.line(record, yield); err != nil {
			return err
		}
	}
	if err := c.rows.Err(); err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	return nil
}

func (c *csvRows) line(record []string, yield func([]byte) error) error {
	c.buf.Reset()
	if err := c.w.Write(record); err != nil {
		return err
	}
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	return yield(bytes.Clone(c.buf.Bytes()))
}

func (c *csvRows) Close() error {
	c.rows.Close()
	// A client that went away says nothing about the database.
	err := c.rows.Err()
	if c.decodeErr != nil || (err != nil && !errors.Is(err, context.Canceled)) {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	return nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
