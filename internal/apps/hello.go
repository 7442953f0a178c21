// Package apps holds the applications served by the gateway. Each one
// returns a different kind of response body.
package apps

import (
	"net/http"

	"github.com/af-corp/bodygate/internal/body"
	"github.com/af-corp/bodygate/internal/config"
	"github.com/af-corp/bodygate/internal/gateway"
)

// Hello answers with the configured greeting, one chunk per message part.
func Hello(cfg func() *config.Config) gateway.Application {
	return gateway.AppFunc(func(env *gateway.Env) (*gateway.Response, error) {
		return &gateway.Response{
			Status:  http.StatusOK,
			Headers: gateway.H("Content-Type", "text/plain; charset=utf-8"),
			Body:    body.Strings(cfg().Apps.HelloMessage...),
		}, nil
	})
}

// text is a one-chunk plain text response.
func text(status int, msg string, extra ...string) *gateway.Response {
	h := gateway.H("Content-Type", "text/plain; charset=utf-8")
	h = append(h, gateway.H(extra...)...)
	return &gateway.Response{Status: status, Headers: h, Body: body.Strings(msg)}
}
