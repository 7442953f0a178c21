package gateway

import (
	"log/slog"
	"net/http"

	"github.com/af-corp/bodygate/internal/ports"
)

// Env is what the gateway hands an application for one request. Logger
// carries the request id and application name.
type Env struct {
	RequestID string
	Request   *http.Request
	Input     *ports.Input
	Errors    *ports.Errors
	Logger    *slog.Logger
}

// Response is the (status, headers, body) triple returned by an application.
// Body may be any value body.Classify accepts.
type Response struct {
	Status  int
	Headers Headers
	Body    any
}

// Application serves one request. The gateway owns Env and closes its ports
// once the response body has been drained.
type Application interface {
	Serve(env *Env) (*Response, error)
}

// AppFunc adapts a function to Application.
type AppFunc func(env *Env) (*Response, error)

func (f AppFunc) Serve(env *Env) (*Response, error) { return f(env) }
