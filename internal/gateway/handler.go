package gateway

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/af-corp/bodygate/internal/body"
	"github.com/af-corp/bodygate/internal/config"
	"github.com/af-corp/bodygate/internal/httputil"
	"github.com/af-corp/bodygate/internal/ports"
	"github.com/af-corp/bodygate/internal/telemetry"
)

// Handler runs an Application behind net/http: it builds the request's
// ports, calls the application and drains the returned body into the
// response.
type Handler struct {
	name    string
	app     Application
	cfg     func() *config.Config
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

func NewHandler(name string, app Application, cfg func() *config.Config, metrics *telemetry.Metrics, logger *slog.Logger) *Handler {
	return &Handler{
		name:    name,
		app:     app,
		cfg:     cfg,
		metrics: metrics,
		logger:  logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID := w.Header().Get("X-Request-ID")
	receivedAt := time.Now()
	bodyCfg := h.cfg().Body
	logger := h.logger.With("request_id", reqID, "app", h.name)

	input, err := openInput(r, bodyCfg)
	if err != nil {
		logger.Error("failed to read request body", "error", err)
		httputil.WriteBadRequestError(w, reqID, "Failed to read request body")
		h.record(http.StatusBadRequest, receivedAt)
		return
	}
	defer input.Close()

	errs := ports.NewErrors(ports.NewLogWriter(logger))
	defer func() {
		if errs.Closed() {
			return
		}
		if err := errs.Close(); err != nil {
			logger.Warn("failed to close errors port", "error", err)
		}
	}()

	resp, err := h.app.Serve(&Env{
		RequestID: reqID,
		Request:   r,
		Input:     input,
		Errors:    errs,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("application failed", "error", err)
		httputil.WriteInternalError(w, reqID, "Application error")
		h.record(http.StatusInternalServerError, receivedAt)
		return
	}
	if resp == nil {
		logger.Error("application returned no response")
		httputil.WriteInternalError(w, reqID, "Application returned no response")
		h.record(http.StatusInternalServerError, receivedAt)
		return
	}
	if resp.Status < 100 || resp.Status > 999 {
		closeBody(resp.Body, logger)
		logger.Error("application returned invalid status", "status", resp.Status)
		httputil.WriteInternalError(w, reqID, fmt.Sprintf("Invalid response status %d", resp.Status))
		h.record(http.StatusInternalServerError, receivedAt)
		return
	}

	src, err := body.Classify(resp.Body, bodyCfg.ChunkSize)
	if err != nil {
		closeBody(resp.Body, logger)
		logger.Error("unsupported response body", "error", err, "type", fmt.Sprintf("%T", resp.Body))
		httputil.WriteInternalError(w, reqID, "Unsupported response body")
		h.record(http.StatusInternalServerError, receivedAt)
		return
	}

	sink := newResponseSink(w, resp.Status, resp.Headers, bodyCfg.FlushEachChunk)
	err = body.Drain(r.Context(), src, sink.write)
	kind := src.Kind().String()

	if err == nil {
		sink.commit()
		h.recordDrain(kind, sink, "")
		h.record(resp.Status, receivedAt)
		logger.Info("request completed",
			"status_code", resp.Status,
			"body_kind", kind,
			"chunks", sink.chunks,
			"bytes", sink.bytes,
			"duration_ms", time.Since(receivedAt).Milliseconds(),
		)
		return
	}

	failure := body.KindOf(err)
	h.recordDrain(kind, sink, failure.String())
	attrs := []any{
		"error", err,
		"body_kind", kind,
		"chunks", sink.chunks,
		"bytes", sink.bytes,
		"duration_ms", time.Since(receivedAt).Milliseconds(),
	}

	switch failure {
	case body.SinkFailed:
		h.record(resp.Status, receivedAt)
		logger.Warn("client write failed", attrs...)
	case body.Aborted:
		h.record(resp.Status, receivedAt)
		logger.Info("request abandoned by client", attrs...)
	case body.CloseFailed:
		sink.commit()
		h.record(resp.Status, receivedAt)
		logger.Warn("response body close failed", attrs...)
	default:
		logger.Error("response body failed", attrs...)
		if !sink.committed {
			httputil.WriteInternalError(w, reqID, "Response body failed")
			h.record(http.StatusInternalServerError, receivedAt)
			return
		}
		h.record(resp.Status, receivedAt)
		// Headers are on the wire; abort so the client sees a truncated response.
		panic(http.ErrAbortHandler)
	}
}

func openInput(r *http.Request, cfg config.BodyConfig) (*ports.Input, error) {
	var src io.ReadCloser = http.NoBody
	if r.Body != nil {
		src = r.Body
	}
	if cfg.BufferInput {
		return ports.Spool(src, cfg.SpoolMemoryLimit, cfg.SpoolDir)
	}
	return ports.NewInput(src), nil
}

// closeBody releases a body value the gateway refused to drain.
func closeBody(v any, logger *slog.Logger) {
	c, ok := v.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		logger.Warn("failed to close rejected body", "error", err)
	}
}

func (h *Handler) record(status int, receivedAt time.Time) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordRequest(telemetry.RequestLabels{
		App:        h.name,
		Status:     strconv.Itoa(status),
		DurationMs: float64(time.Since(receivedAt).Milliseconds()),
	})
}

func (h *Handler) recordDrain(kind string, sink *responseSink, reason string) {
	if h.metrics == nil {
		return
	}
	h.metrics.RecordDrain(kind, sink.chunks, sink.bytes, reason)
}

// responseSink writes drained chunks to the client. Status and headers are
// sent with the first chunk so a body that fails before producing anything
// can still be answered with an error.
type responseSink struct {
	w         http.ResponseWriter
	status    int
	headers   Headers
	flusher   http.Flusher
	committed bool
	chunks    int
	bytes     int64
}

func newResponseSink(w http.ResponseWriter, status int, headers Headers, flush bool) *responseSink {
	s := &responseSink{w: w, status: status, headers: headers}
	if flush {
		s.flusher, _ = w.(http.Flusher)
	}
	return s
}

func (s *responseSink) commit() {
	if s.committed {
		return
	}
	s.committed = true
	s.headers.WriteTo(s.w.Header())
	s.w.WriteHeader(s.status)
}

func (s *responseSink) write(chunk []byte) error {
	s.commit()
	if len(chunk) > 0 {
		n, err := s.w.Write(chunk)
		s.bytes += int64(n)
		if err != nil {
			return fmt.Errorf("write response: %w", err)
		}
	}
	s.chunks++
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
