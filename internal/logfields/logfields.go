package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyPage       = "page"
	KeyFile       = "file"
	KeyOutput     = "output"
	KeyPath       = "path"
	KeyRule       = "rule"
	KeyBytes      = "bytes"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
	KeyURL        = "url"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Stage(name string) slog.Attr      { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Page(id string) slog.Attr         { return slog.String(KeyPage, id) }
func File(f string) slog.Attr          { return slog.String(KeyFile, f) }
func Output(o string) slog.Attr        { return slog.String(KeyOutput, o) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func Rule(r string) slog.Attr          { return slog.String(KeyRule, r) }
func Bytes(n int) slog.Attr            { return slog.Int(KeyBytes, n) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(addr string) slog.Attr { return slog.String(KeyRemoteAddr, addr) }
func URL(u string) slog.Attr           { return slog.String(KeyURL, u) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
