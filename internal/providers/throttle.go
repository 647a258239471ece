package providers

import (
	"context"
	"math"
	"sync"

	"golang.org/x/time/rate"
)

// Throttle holds one token bucket per provider so a busy provider cannot
// starve calls to the others.
type Throttle struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// NewThrottle allows perSecond calls per provider. A non-positive rate
// disables throttling.
func NewThrottle(perSecond float64) *Throttle {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(math.Ceil(perSecond)))
	}
	return &Throttle{limit: limit, burst: burst, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until provider may issue another call or ctx is done.
func (t *Throttle) Wait(ctx context.Context, provider string) error {
	return t.limiter(provider).Wait(ctx)
}

func (t *Throttle) limiter(provider string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiters[provider]
	if !ok {
		l = rate.NewLimiter(t.limit, t.burst)
		t.limiters[provider] = l
	}
	return l
}
