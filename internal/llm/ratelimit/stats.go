package ratelimit

// Stats is a snapshot of limiter state for monitoring. The active limiter
// count tracks memory held by per-key buckets.
type Stats struct {
	// LocalLimiters is the number of active per-key token-bucket limiters.
	LocalLimiters int
	// Enabled indicates whether throttling is configured at all.
	Enabled bool
}

// GetStats returns a snapshot of the current limiter state.
func (r *rateLimitMiddleware) GetStats() *Stats {
	r.mu.RLock()
	localCount := len(r.limiters)
	r.mu.RUnlock()

	return &Stats{
		LocalLimiters: localCount,
		Enabled:       r.config.Enabled,
	}
}
