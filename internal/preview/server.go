package preview

import (
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/klauspost/compress/gzhttp"

	ferrors "git.home.luguber.info/inful/assetbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// StatusPath reports the latest build result as JSON. A failed build is
// written through the HTTP error adapter, so its status code follows the
// error category.
const StatusPath = "/_status"

// HandlerOptions configures NewHandler.
type HandlerOptions struct {
	Root    string // output tree to serve
	Hub     *LiveReloadHub
	Status  *BuildStatus // optional
	Metrics http.Handler // optional, mounted at /metrics
}

// NewHandler returns the development server's router.
func NewHandler(opts HandlerOptions) http.Handler {
	if opts.Hub == nil {
		opts.Hub = NewLiveReloadHub()
	}
	if opts.Status == nil {
		opts.Status = &BuildStatus{}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/livereload", opts.Hub.ServeHTTP)
	r.Get(ClientScriptPath, serveClientScript)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics)
	}
	r.Get(StatusPath, statusHandler(opts.Status))

	static := &staticHandler{root: opts.Root, status: opts.Status}
	r.Handle("/*", gzhttp.GzipHandler(injectLiveReload(static)))
	return r
}

func serveClientScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(ClientScript))
}

func statusHandler(status *BuildStatus) http.HandlerFunc {
	adapter := ferrors.NewHTTPErrorAdapter(nil)
	return func(w http.ResponseWriter, r *http.Request) {
		lastErr, good := status.Get()
		if lastErr != nil {
			adapter.WriteErrorResponse(w, r, lastErr)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":     "ok",
			"builds":     status.Builds(),
			"good_build": good,
		})
	}
}

// requestLogger logs every request at debug level.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		t0 := time.Now()
		next.ServeHTTP(ww, r)
		slog.Debug("HTTP request",
			logfields.Method(r.Method),
			logfields.Path(r.URL.Path),
			logfields.Status(ww.Status()),
			logfields.RemoteAddr(r.RemoteAddr),
			logfields.DurationMS(float64(time.Since(t0).Microseconds())/1000),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// staticHandler serves the output tree. Paths without a matching file and
// without an extension (or ending in .html) fall back to index.html.
type staticHandler struct {
	root   string
	status *BuildStatus
}

func (s *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}
	if lastErr, good := s.status.Get(); lastErr != nil && !good {
		serveErrorPage(w, lastErr)
		return
	}

	upath := path.Clean("/" + r.URL.Path)
	name, ok := s.lookup(upath)
	if !ok {
		if ext := path.Ext(upath); ext != "" && ext != ".html" {
			http.NotFound(w, r)
			return
		}
		if name, ok = s.lookup("/index.html"); !ok {
			http.NotFound(w, r)
			return
		}
	}

	f, err := os.Open(name)
	if err != nil {
		http.Error(w, "cannot open file", http.StatusInternalServerError)
		return
	}
	defer func() { _ = f.Close() }()
	fi, err := f.Stat()
	if err != nil {
		http.Error(w, "cannot stat file", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, fi.Name(), fi.ModTime(), f)
}

// lookup maps a cleaned URL path to a regular file, using index.html for
// directories.
func (s *staticHandler) lookup(upath string) (string, bool) {
	name := filepath.Join(s.root, filepath.FromSlash(upath))
	fi, err := os.Stat(name)
	if err == nil && fi.IsDir() {
		name = filepath.Join(name, "index.html")
		fi, err = os.Stat(name)
	}
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Debug("Stat failed", logfields.Path(name), logfields.Error(err))
		}
		return "", false
	}
	return name, fi.Mode().IsRegular()
}

func serveErrorPage(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = fmt.Fprintf(w, `<!DOCTYPE html>
<html><head><title>Build failed</title></head>
<body><h1>Build failed</h1><pre>%s</pre><p>Fix the error and save; this page reloads after the next successful build.</p></body></html>
`, html.EscapeString(err.Error()))
}
