// Package alerts turns alerting decisions into emergency e-mails.
//
// Delivery never fails the caller: every outcome, including a misconfigured
// notifier or a broken mail server, comes back as a Result.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"firealert/internal/logger"
	"firealert/internal/metrics"
)

// Config is the mail delivery configuration. It is read-only after startup.
type Config struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// Complete reports whether delivery can be attempted at all.
func (c Config) Complete() bool {
	return c.Username != "" && c.Password != "" && len(c.Recipients) > 0
}

// Sender returns the envelope sender address.
func (c Config) Sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

// NotificationContext describes one alert event.
type NotificationContext struct {
	JobID string

	// Scores keyed by label; fire, smoke and hazard are rendered, missing
	// labels render as 0.0%.
	Scores map[string]float64

	// Timestamp is the video offset in seconds, nil when unknown.
	Timestamp *float64
}

// Reason classifies the outcome of Notify.
type Reason string

const (
	ReasonDelivered               Reason = "delivered"
	ReasonConfigurationIncomplete Reason = "config_incomplete"
	ReasonDeliveryFailed          Reason = "delivery_failed"
)

var (
	ErrConfigurationIncomplete = errors.New("mail configuration is incomplete")
	ErrDeliveryFailed          = errors.New("mail delivery failed")
)

// Result is the outcome of a notification attempt.
type Result struct {
	Delivered bool
	Reason    Reason
	// Err is nil when Delivered.
	Err error
}

// Attempted reports whether the mail transport was contacted.
func (r Result) Attempted() bool {
	return r.Reason != ReasonConfigurationIncomplete
}

// Message is a rendered notification ready for a Transport.
type Message struct {
	From    string
	To      []string
	Subject string
	HTML    string
}

// Transport delivers a message to all of its recipients in one send.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Notifier sends emergency notifications.
type Notifier struct {
	cfg       Config
	transport Transport
	now       func() time.Time
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithClock overrides the wall clock used for the send time.
func WithClock(now func() time.Time) Option {
	return func(n *Notifier) { n.now = now }
}

// NewNotifier returns a Notifier delivering through transport.
func NewNotifier(cfg Config, transport Transport, opts ...Option) *Notifier {
	cfg.Recipients = append([]string(nil), cfg.Recipients...)
	n := &Notifier{
		cfg:       cfg,
		transport: transport,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Ready reports whether Notify will attempt delivery.
func (n *Notifier) Ready() bool {
	return n.cfg.Complete() && n.transport != nil
}

// Notify renders nc and delivers it to every configured recipient.
func (n *Notifier) Notify(ctx context.Context, nc NotificationContext) (res Result) {
	log := logger.WithJob("notifier", nc.JobID)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			metrics.PanicsRecovered.WithLabelValues("notifier").Inc()
			res = Result{Reason: ReasonDeliveryFailed, Err: fmt.Errorf("%w: panic: %v", ErrDeliveryFailed, r)}
		}
		metrics.NotificationsTotal.WithLabelValues(string(res.Reason)).Inc()
		switch res.Reason {
		case ReasonDelivered:
			log.Info().
				Int("recipients", len(n.cfg.Recipients)).
				Dur("duration", time.Since(start)).
				Msg("emergency notification sent")
		case ReasonConfigurationIncomplete:
			log.Warn().Msg("mail configuration is incomplete, notification not sent")
		default:
			log.Error().Err(res.Err).Dur("duration", time.Since(start)).Msg("emergency notification failed")
		}
	}()

	if !n.Ready() {
		return Result{Reason: ReasonConfigurationIncomplete, Err: ErrConfigurationIncomplete}
	}

	msg, err := n.render(nc)
	if err != nil {
		return Result{Reason: ReasonDeliveryFailed, Err: fmt.Errorf("%w: %v", ErrDeliveryFailed, err)}
	}

	err = n.transport.Send(ctx, msg)
	metrics.NotificationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return Result{Reason: ReasonDeliveryFailed, Err: fmt.Errorf("%w: %v", ErrDeliveryFailed, err)}
	}

	return Result{Delivered: true, Reason: ReasonDelivered}
}

func (n *Notifier) render(nc NotificationContext) (*Message, error) {
	body, err := RenderHTML(nc, n.now())
	if err != nil {
		return nil, err
	}
	return &Message{
		From:    n.cfg.Sender(),
		To:      append([]string(nil), n.cfg.Recipients...),
		Subject: Subject(nc.JobID),
		HTML:    body,
	}, nil
}
