package server

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/auth"
	"golang.org/x/time/rate"
)

// CheckoutLimiter throttles order placement per authenticated user, falling
// back to the client IP.
type CheckoutLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	idle     time.Duration
	lastScan time.Time
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewCheckoutLimiter allows perWindow attempts per window, all of which may
// be used in a burst.
func NewCheckoutLimiter(perWindow int, window time.Duration) *CheckoutLimiter {
	if perWindow <= 0 {
		perWindow = 1
	}
	return &CheckoutLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(perWindow)),
		burst:    perWindow,
		idle:     3 * window,
		now:      time.Now,
	}
}

func (l *CheckoutLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	// stale visitors are swept inline, at most once per idle period
	if now.Sub(l.lastScan) > l.idle {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, k)
			}
		}
		l.lastScan = now
	}

	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *CheckoutLimiter) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := "ip:" + c.IP()
		if p, err := auth.FromCtx(c); err == nil {
			key = "user:" + strconv.Itoa(p.UserID)
		}
		if !l.allow(key) {
			retry := time.Duration(float64(time.Second) / float64(l.limit))
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(retry.Seconds())+1))
			return apperror.Respond(c, apperror.New(apperror.KindRateLimited, "too many checkout attempts, please slow down"))
		}
		return c.Next()
	}
}
