package apps

import (
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/af-corp/bodygate/internal/body"
	"github.com/af-corp/bodygate/internal/config"
	"github.com/af-corp/bodygate/internal/gateway"
	"github.com/go-chi/chi/v5"
)

// Files serves regular files below the configured root. The open file is
// the response body; draining it closes the file.
func Files(cfg func() *config.Config) gateway.Application {
	return gateway.AppFunc(func(env *gateway.Env) (*gateway.Response, error) {
		c := cfg()
		name := requestedFile(env.Request)
		if !filepath.IsLocal(name) {
			return text(http.StatusForbidden, "forbidden\n"), nil
		}

		f, err := os.OpenInRoot(c.Apps.FilesRoot, name)
		if errors.Is(err, fs.ErrNotExist) {
			return text(http.StatusNotFound, "not found\n"), nil
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}

		info, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("stat %s: %w", name, err)
		}
		if !info.Mode().IsRegular() {
			f.Close()
			return text(http.StatusNotFound, "not found\n"), nil
		}

		contentType := mime.TypeByExtension(filepath.Ext(name))
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return &gateway.Response{
			Status: http.StatusOK,
			Headers: gateway.H(
				"Content-Type", contentType,
				"Content-Length", strconv.FormatInt(info.Size(), 10),
			),
			Body: body.FromReader(f, c.Body.ChunkSize),
		}, nil
	})
}

// requestedFile returns the path below the mount point: the chi wildcard
// when routed through chi, the whole URL path otherwise.
func requestedFile(r *http.Request) string {
	if chi.RouteContext(r.Context()) != nil {
		return filepath.FromSlash(chi.URLParam(r, "*"))
	}
	return filepath.FromSlash(strings.TrimPrefix(r.URL.Path, "/"))
}
