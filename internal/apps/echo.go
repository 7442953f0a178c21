package apps

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/af-corp/bodygate/internal/body"
	"github.com/af-corp/bodygate/internal/gateway"
	"github.com/af-corp/bodygate/internal/ports"
)

// Echo streams the request body back one line per chunk. It reads the body
// once to report its size on the errors port, then rewinds and serves the
// lines from a generator. Without rewind it echoes the bytes already read.
func Echo() gateway.Application {
	return gateway.AppFunc(func(env *gateway.Env) (*gateway.Response, error) {
		data, err := env.Input.ReadAll(int(env.Request.ContentLength))
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		diagnose(env, "echo: received %d bytes\n", len(data))

		contentType := env.Request.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "text/plain; charset=utf-8"
		}
		headers := gateway.H("Content-Type", contentType)

		err = env.Input.Rewind()
		if errors.Is(err, ports.ErrCapabilityUnsupported) {
			diagnose(env, "echo: input not rewindable, replaying buffered copy\n")
			return &gateway.Response{Status: http.StatusOK, Headers: headers, Body: body.Chunks(data)}, nil
		}
		if err != nil {
			return nil, err
		}

		return &gateway.Response{
			Status:  http.StatusOK,
			Headers: headers,
			Body:    body.FromGenerator(env.Input.ReadLine),
		}, nil
	})
}

// diagnose writes to the errors port. A failed write does not fail the
// request; it is logged so the lost diagnostic is visible.
func diagnose(env *gateway.Env, format string, args ...any) {
	err := env.Errors.Printf(format, args...)
	if err == nil {
		return
	}
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("diagnostic dropped", "error", err, "diagnostic", fmt.Sprintf(format, args...))
}
