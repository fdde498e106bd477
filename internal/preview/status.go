package preview

import "sync"

// BuildStatus tracks the outcome of the latest build so the server can show
// an error page until a first good build exists.
type BuildStatus struct {
	mu           sync.RWMutex
	lastError    error
	hasGoodBuild bool
	builds       int
}

func (bs *BuildStatus) setError(err error) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = err
	bs.builds++
}

func (bs *BuildStatus) setSuccess() {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	bs.lastError = nil
	bs.hasGoodBuild = true
	bs.builds++
}

// Get returns the latest error (nil after a successful build) and whether any
// build has succeeded so far.
func (bs *BuildStatus) Get() (lastErr error, hasGoodBuild bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.lastError, bs.hasGoodBuild
}

// Builds returns how many builds have completed.
func (bs *BuildStatus) Builds() int {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	return bs.builds
}
