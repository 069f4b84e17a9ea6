package delay

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

// Strategy is the tagged variant selecting how inter-request waits are
// computed. All strategies dispatch through the single Policy.Next method;
// there is no per-strategy type to inspect at runtime.
type Strategy int

// Recognized delay strategies.
const (
	// StrategyFixed always waits exactly the minimum delay.
	StrategyFixed Strategy = iota

	// StrategyRandom waits a uniform duration in [min, max].
	StrategyRandom

	// StrategyExponential waits min x 2^k after k consecutive failures,
	// capped at max. Monotonically non-decreasing in k.
	StrategyExponential

	// StrategyAdaptive starts from a uniform base and widens when the
	// server looks strained, shrinking back toward min while responses
	// stay fast.
	StrategyAdaptive
)

// String returns the configuration-level name of the strategy.
func (s Strategy) String() string {
	switch s {
	case StrategyFixed:
		return "fixed"
	case StrategyRandom:
		return "random"
	case StrategyExponential:
		return "exponential"
	case StrategyAdaptive:
		return "adaptive"
	default:
		return "unknown"
	}
}

// ParseStrategy converts a configuration string into a Strategy.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "fixed":
		return StrategyFixed, nil
	case "random":
		return StrategyRandom, nil
	case "exponential":
		return StrategyExponential, nil
	case "adaptive":
		return StrategyAdaptive, nil
	default:
		return 0, fmt.Errorf("unknown delay strategy %q", name)
	}
}

// Adaptive strategy tuning.
const (
	// slowResponseThreshold marks a server as strained: responses slower
	// than this widen the adaptive delay.
	slowResponseThreshold = 3 * time.Second

	// fastResponseThreshold marks a server as comfortable: while recent
	// responses stay under it, the adaptive delay shrinks toward min.
	fastResponseThreshold = 1 * time.Second

	// strainBackoffFactor multiplies the adaptive base when the last
	// response crossed the slow threshold.
	strainBackoffFactor = 2.0

	// hardCeilingFactor bounds every computed delay at this multiple of
	// the maximum delay, preventing runaway stalls no matter how the
	// feedback loop compounds.
	hardCeilingFactor = 10

	// recentWindow is how many response times feed the adaptive average.
	recentWindow = 10
)

// Policy computes the wait before each request from configured bounds and
// observed server behavior. It is shared across fetch workers; Next,
// Observe, and Escalate are all safe for concurrent use.
//
// Design decision: Observations and computation live on one synchronized
// type rather than having callers thread a state value through, because
// the feedback loop (consecutive failures, response times, escalation) is
// genuinely shared crawl-wide state. Each crawl run owns its own Policy.
type Policy struct {
	strategy Strategy
	min      time.Duration
	max      time.Duration

	mu                  sync.Mutex
	consecutiveFailures int
	lastResponseTime    time.Duration
	haveLastResponse    bool
	recent              []time.Duration

	// escalation multiplies every computed delay. Starts at 1 and grows
	// when the server pushes back (HTTP 429). Never shrinks mid-crawl.
	escalation float64
}

// NewPolicy creates a delay policy for one crawl run.
func NewPolicy(strategy Strategy, min, max time.Duration) *Policy {
	if max < min {
		max = min
	}
	return &Policy{
		strategy:   strategy,
		min:        min,
		max:        max,
		escalation: 1.0,
	}
}

// Next computes the wait before the next request.
// The result never goes below the configured minimum nor above the hard
// ceiling of 10x the configured maximum.
func (p *Policy) Next() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	var d time.Duration
	switch p.strategy {
	case StrategyFixed:
		d = p.min
	case StrategyRandom:
		d = p.uniform()
	case StrategyExponential:
		d = p.exponential()
	case StrategyAdaptive:
		d = p.adaptive()
	default:
		d = p.min
	}

	d = time.Duration(float64(d) * p.escalation)
	return p.clamp(d)
}

// Observe feeds the outcome of one request into the feedback loop.
// Failed attempts grow the consecutive-failure counter driving the
// exponential strategy; response times drive the adaptive strategy.
func (p *Policy) Observe(responseTime time.Duration, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if success {
		p.consecutiveFailures = 0
	} else {
		p.consecutiveFailures++
	}

	if responseTime > 0 {
		p.lastResponseTime = responseTime
		p.haveLastResponse = true
		p.recent = append(p.recent, responseTime)
		if len(p.recent) > recentWindow {
			p.recent = p.recent[1:]
		}
	}
}

// Escalate multiplies all future delays by factor. Used when the server
// signals rate limiting; factor values below 1 are ignored.
func (p *Policy) Escalate(factor float64) {
	if factor <= 1 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.escalation *= factor
}

// ConsecutiveFailures returns the current failure streak.
func (p *Policy) ConsecutiveFailures() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.consecutiveFailures
}

// uniform returns a uniform duration in [min, max].
func (p *Policy) uniform() time.Duration {
	if p.max == p.min {
		return p.min
	}
	return p.min + time.Duration(rand.Int64N(int64(p.max-p.min)))
}

// exponential returns min x 2^failures capped at max.
// The shift is bounded to keep the multiplication from overflowing long
// before the cap would apply.
func (p *Policy) exponential() time.Duration {
	k := p.consecutiveFailures
	if k > 30 {
		k = 30
	}
	d := p.min << uint(k)
	if d > p.max || d < p.min {
		d = p.max
	}
	return d
}

// adaptive returns a uniform base widened under strain and narrowed while
// the server responds quickly.
func (p *Policy) adaptive() time.Duration {
	base := p.uniform()

	if p.haveLastResponse && p.lastResponseTime > slowResponseThreshold {
		return time.Duration(float64(base) * strainBackoffFactor)
	}

	if p.consecutiveFailures == 0 && len(p.recent) > 0 && p.recentAverage() < fastResponseThreshold {
		// Comfortable server: move halfway back toward the floor.
		return p.min + (base-p.min)/2
	}

	return base
}

// recentAverage returns the mean of the recent response-time window.
func (p *Policy) recentAverage() time.Duration {
	var sum time.Duration
	for _, rt := range p.recent {
		sum += rt
	}
	return sum / time.Duration(len(p.recent))
}

// clamp bounds a computed delay to [min, 10 x max].
func (p *Policy) clamp(d time.Duration) time.Duration {
	if d < p.min {
		return p.min
	}
	ceiling := p.max * hardCeilingFactor
	if d > ceiling {
		return ceiling
	}
	return d
}
