package payment

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/urbancart-backend/internal/apperror"
	"github.com/wichananm65/urbancart-backend/internal/logging"
	"github.com/wichananm65/urbancart-backend/internal/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var (
	ErrUnknownTransaction = apperror.NotFound("transaction not found")
	ErrAlreadyVoided      = apperror.Conflict("transaction already voided")

	cvvPattern    = regexp.MustCompile(`^[0-9]{3,4}$`)
	expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/([0-9]{2})$`)
)

type Option func(*Authorizer)

// WithLatency simulates the round trip to a real gateway.
func WithLatency(d time.Duration) Option {
	return func(a *Authorizer) { a.latency = d }
}

func WithClock(now func() time.Time) Option {
	return func(a *Authorizer) { a.now = now }
}

// WithRetention sets how long an authorization can still be voided.
func WithRetention(d time.Duration) Option {
	return func(a *Authorizer) {
		if d > 0 {
			a.retention = d
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authorizer) { a.metrics = m }
}

type Authorizer struct {
	policy   DecisionPolicy
	attempts atomic.Uint64
	latency  time.Duration
	now      func() time.Time
	metrics  *metrics.Metrics

	mu        sync.Mutex
	issued    map[string]*authorization
	retention time.Duration
	lastSweep time.Time
}

type authorization struct {
	at     time.Time
	voided bool
}

func NewAuthorizer(policy DecisionPolicy, opts ...Option) *Authorizer {
	if policy == nil {
		policy = AlwaysApprove()
	}
	a := &Authorizer{
		policy:    policy,
		now:       time.Now,
		issued:    make(map[string]*authorization),
		retention: 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authorize reports every decline, including a gateway timeout, through the
// Result rather than as an error.
func (a *Authorizer) Authorize(ctx context.Context, req Request) (res Result, err error) {
	ctx, span := otel.Tracer("urbancart/payment").Start(ctx, "payment.Authorize")
	defer func() {
		span.SetAttributes(attribute.Bool("payment.approved", res.Approved))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := logging.FromContext(ctx).With(zap.String("component", "payment"))
	res = Result{MaskedCard: Mask(req.CardNumber), Amount: req.Amount.StringFixed(2)}

	if reason := a.validate(req); reason != "" {
		res.Reason = reason
		a.metrics.Payment("invalid")
		logger.Info("payment_rejected", zap.String("reason", reason), zap.String("reference", req.Reference))
		return res, nil
	}

	if a.latency > 0 {
		timer := time.NewTimer(a.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			res.Reason = ReasonTimeout
			a.metrics.Payment("timeout")
			logger.Warn("payment_timeout", zap.String("reference", req.Reference))
			return res, nil
		}
	}

	attempt := a.attempts.Add(1)
	if a.policy.Decide(attempt) == Decline {
		res.Reason = ReasonDeclined
		a.metrics.Payment("declined")
		logger.Info("payment_declined", zap.Uint64("attempt", attempt), zap.String("reference", req.Reference))
		return res, nil
	}

	res.Approved = true
	a.mu.Lock()
	now := a.now()
	a.sweep(now)
	for {
		res.TransactionID = a.newTransactionID()
		if _, taken := a.issued[res.TransactionID]; !taken {
			break
		}
	}
	a.issued[res.TransactionID] = &authorization{at: now}
	a.mu.Unlock()

	a.metrics.Payment("approved")
	logger.Info("payment_approved",
		zap.String("transaction_id", res.TransactionID),
		zap.String("amount", res.Amount),
		zap.String("reference", req.Reference),
	)
	return res, nil
}

// Void releases an approved authorization.
func (a *Authorizer) Void(ctx context.Context, transactionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.sweep(a.now())
	auth, ok := a.issued[transactionID]
	if !ok {
		return ErrUnknownTransaction
	}
	if auth.voided {
		return ErrAlreadyVoided
	}
	auth.voided = true
	a.metrics.Payment("voided")
	logging.FromContext(ctx).Info("payment_voided", zap.String("transaction_id", transactionID))
	return nil
}

// sweep forgets authorizations older than the retention period. It runs at
// most once per period and expects a.mu to be held.
func (a *Authorizer) sweep(now time.Time) {
	if now.Sub(a.lastSweep) < a.retention {
		return
	}
	for id, auth := range a.issued {
		if now.Sub(auth.at) > a.retention {
			delete(a.issued, id)
		}
	}
	a.lastSweep = now
}

func (a *Authorizer) validate(req Request) string {
	if !ValidCardNumber(req.CardNumber) {
		return ReasonInvalidCard
	}
	if req.CVV != "" && !cvvPattern.MatchString(req.CVV) {
		return ReasonInvalidDetails
	}
	if req.Expiry != "" {
		m := expiryPattern.FindStringSubmatch(req.Expiry)
		if m == nil {
			return ReasonInvalidDetails
		}
		if expired(m[1], m[2], a.now()) {
			return ReasonExpired
		}
	}
	if !req.Amount.GreaterThan(decimal.Zero) {
		return ReasonInvalidAmount
	}
	return ""
}

// expired treats a card as valid through the last day of its expiry month.
func expired(month, year string, now time.Time) bool {
	mm, _ := strconv.Atoi(month)
	yy, _ := strconv.Atoi(year)
	firstOfNext := time.Date(2000+yy, time.Month(mm)+1, 1, 0, 0, 0, 0, time.UTC)
	return !now.UTC().Before(firstOfNext)
}

func (a *Authorizer) newTransactionID() string {
	return fmt.Sprintf("TXN-%d-%s", a.now().UnixMilli(), uuid.NewString()[:8])
}

// IsTimeout reports whether a declined result was caused by the deadline.
func IsTimeout(res Result) bool {
	return !res.Approved && res.Reason == ReasonTimeout
}
