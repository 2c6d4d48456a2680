package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/spinsight/internal/metrics"
)

// NotificationKind selects the template and the channel of an outbound notification.
type NotificationKind string

const (
	NotifyVerificationCode   NotificationKind = "verification_code"
	NotifyPasswordReset      NotificationKind = "password_reset"
	NotifyAppointmentCreated NotificationKind = "appointment_created"
	NotifyAdminAlert         NotificationKind = "admin_alert"
)

// Payload carries the template values of a notification.
type Payload map[string]string

// Result is the outcome of a send. Senders never return errors past their boundary.
type Result struct {
	Success bool
	Err     error
}

// Notifier delivers one notification to recipient.
type Notifier interface {
	Send(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result

func (f NotifierFunc) Send(ctx context.Context, kind NotificationKind, recipient string, payload Payload) Result {
	return f(ctx, kind, recipient, payload)
}

// NotifierRouter dispatches each kind to its channel under a per-call timeout.
type NotifierRouter struct {
	routes   map[NotificationKind]Notifier
	fallback Notifier
	timeout  time.Duration
	log      *zap.Logger
}

// NewNotifierRouter builds a router sending every kind through fallback unless routed elsewhere.
func NewNotifierRouter(fallback Notifier, timeout time.Duration, log *zap.Logger) *NotifierRouter {
	if log == nil {
		log = zap.NewNop()
	}
	return &NotifierRouter{
		routes:   map[NotificationKind]Notifier{},
		fallback: fallback,
		timeout:  timeout,
		log:      log,
	}
}

// Route sends kind through n.
func (r *NotifierRouter) Route(kind NotificationKind, n Notifier) *NotifierRouter {
	r.routes[kind] = n
	return r
}

// Send implements Notifier.
func (r *NotifierRouter) Send(ctx context.Context, kind NotificationKind, recipient string, payload Payload) (res Result) {
	n, ok := r.routes[kind]
	if !ok {
		n = r.fallback
	}
	if n == nil {
		return Result{Err: fmt.Errorf("no channel for %s notifications", kind)}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("notifier panic: %v", p)}
		}
		status := "sent"
		if !res.Success {
			status = "failed"
			r.log.Warn("notification not delivered",
				zap.String("kind", string(kind)),
				zap.Error(res.Err),
			)
		}
		metrics.NotificationsTotal.WithLabelValues(string(kind), status).Inc()
	}()

	return n.Send(ctx, kind, recipient, payload)
}
