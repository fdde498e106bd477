package preview

import (
	"bytes"
	"net/http"
	"path"
	"strconv"
	"strings"
)

// clientTag is inserted before </body> of every HTML response.
const clientTag = `<script src="` + ClientScriptPath + `"></script>`

const maxInjectSize = 2 << 20

// injectLiveReload buffers HTML responses and inserts the live-reload client.
// Non-HTML responses and oversized documents pass through untouched.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			next.ServeHTTP(w, r)
			return
		}
		if ext := path.Ext(r.URL.Path); ext != "" && ext != ".html" {
			next.ServeHTTP(w, r)
			return
		}
		inj := &liveReloadInjector{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// liveReloadInjector wraps an http.ResponseWriter so the client script can be
// inserted once the full document is known.
type liveReloadInjector struct {
	http.ResponseWriter
	statusCode    int
	buffer        bytes.Buffer
	headerWritten bool
	passthrough   bool
	decided       bool
}

func (l *liveReloadInjector) WriteHeader(code int) {
	l.statusCode = code
	if l.passthrough {
		l.ResponseWriter.WriteHeader(code)
		l.headerWritten = true
	}
}

func (l *liveReloadInjector) startPassthrough() {
	l.passthrough = true
	l.ResponseWriter.WriteHeader(l.statusCode)
	l.headerWritten = true
}

func (l *liveReloadInjector) Write(data []byte) (int, error) {
	if !l.decided {
		l.decided = true
		ct := l.ResponseWriter.Header().Get("Content-Type")
		if ct != "" && !strings.Contains(ct, "text/html") {
			l.startPassthrough()
		}
	}
	if l.passthrough {
		return l.ResponseWriter.Write(data)
	}
	if l.buffer.Len()+len(data) > maxInjectSize {
		l.startPassthrough()
		if _, err := l.ResponseWriter.Write(l.buffer.Bytes()); err != nil {
			return 0, err
		}
		l.buffer.Reset()
		return l.ResponseWriter.Write(data)
	}
	return l.buffer.Write(data)
}

// finalize must be called after the handler completes.
func (l *liveReloadInjector) finalize() {
	if l.passthrough {
		return
	}
	doc := l.buffer.Bytes()
	if len(doc) > 0 && (l.statusCode < http.StatusMultipleChoices || l.statusCode == http.StatusServiceUnavailable) {
		doc = insertClient(doc)
	}
	h := l.ResponseWriter.Header()
	h.Set("Content-Length", strconv.Itoa(len(doc)))
	if !l.headerWritten {
		l.ResponseWriter.WriteHeader(l.statusCode)
	}
	_, _ = l.ResponseWriter.Write(doc)
}

func insertClient(doc []byte) []byte {
	if bytes.Contains(doc, []byte(clientTag)) {
		return doc
	}
	i := bytes.LastIndex(bytes.ToLower(doc), []byte("</body>"))
	if i < 0 {
		return append(doc, clientTag...)
	}
	out := make([]byte, 0, len(doc)+len(clientTag))
	out = append(out, doc[:i]...)
	out = append(out, clientTag...)
	return append(out, doc[i:]...)
}
