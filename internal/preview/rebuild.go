package preview

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/assetbuilder/internal/logfields"
)

// BuildFunc runs one build and returns a hash identifying its output.
type BuildFunc func(ctx context.Context) (string, error)

// Rebuilder runs builds on a single worker goroutine. Requests that arrive
// while a build runs collapse into exactly one follow-up build.
type Rebuilder struct {
	build    BuildFunc
	hub      *LiveReloadHub
	status   *BuildStatus
	requests chan struct{}
}

func NewRebuilder(build BuildFunc, hub *LiveReloadHub, status *BuildStatus) *Rebuilder {
	return &Rebuilder{build: build, hub: hub, status: status, requests: make(chan struct{}, 1)}
}

// Request asks for a rebuild without blocking.
func (r *Rebuilder) Request() {
	select {
	case r.requests <- struct{}{}:
	default:
	}
}

// Run processes requests until ctx is done.
func (r *Rebuilder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.requests:
			r.BuildNow(ctx)
		}
	}
}

// BuildNow builds synchronously and notifies clients. A failed build keeps the
// previous output served and broadcasts an error marker.
func (r *Rebuilder) BuildNow(ctx context.Context) {
	hash, err := r.build(ctx)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		slog.Warn("Rebuild failed; serving previous output", logfields.Error(err))
		r.status.setError(err)
		r.hub.BroadcastError()
		return
	}
	r.status.setSuccess()
	r.hub.Broadcast(hash)
	slog.Info("Rebuild complete; notified browsers", slog.String("hash", hash), slog.Int("clients", r.hub.Clients()))
}
