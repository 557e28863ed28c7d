package metrics

import "time"

// rateTracker computes the derived per-minute rates on read, using an
// exponentially weighted moving average over a 60 s window.
// Prometheus client_golang has no rate() helper (that is a PromQL-side
// operation), so this is plain local bookkeeping alongside the counters it
// shadows.
type rateTracker struct {
	window time.Duration
	alpha  float64

	lastTick time.Time

	messageEWMA float64
	toolEWMA    float64

	toolCalls  int64
	toolErrors int64
}

func newRateTracker(now time.Time) rateTracker {
	return rateTracker{
		window:   time.Minute,
		alpha:    0.3,
		lastTick: now,
	}
}

// decay applies exponential decay to both EWMAs proportional to elapsed
// time since the last observation, so a rate tracker that receives events
// in bursts still converges to an accurate per-minute estimate between
// bursts instead of only decaying on the next event of the same kind.
func (r *rateTracker) decay(now time.Time) {
	elapsed := now.Sub(r.lastTick)
	if elapsed <= 0 {
		return
	}
	periods := elapsed.Seconds() / r.window.Seconds()
	factor := decayFactor(r.alpha, periods)
	r.messageEWMA *= factor
	r.toolEWMA *= factor
	r.lastTick = now
}

func decayFactor(alpha, periods float64) float64 {
	factor := 1.0
	remaining := periods
	for remaining > 1 {
		factor *= 1 - alpha
		remaining--
	}
	// Partial final period, linear interpolation of the decay factor.
	factor *= 1 - alpha*remaining
	return factor
}

func (r *rateTracker) recordMessage(now time.Time) {
	r.decay(now)
	r.messageEWMA += 1
}

func (r *rateTracker) recordTool(now time.Time) {
	r.decay(now)
	r.toolEWMA += 1
	r.toolCalls++
}

func (r *rateTracker) recordToolError() {
	r.toolErrors++
}

func (r *rateTracker) messagesPerMinute() float64 {
	return r.messageEWMA
}

func (r *rateTracker) toolsPerMinute() float64 {
	return r.toolEWMA
}

func (r *rateTracker) errorRate() float64 {
	if r.toolCalls == 0 {
		return 0
	}
	return float64(r.toolErrors) / float64(r.toolCalls)
}
