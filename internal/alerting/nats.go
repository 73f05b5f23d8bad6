package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/sugawarayuuta/sonnet"
)

// Publisher is the subset of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier 将告警以 JSON 发布到 NATS 主题。
type NATSNotifier struct {
	pub     Publisher
	subject string
	logger  zerolog.Logger
}

// NewNATSNotifier 构造 NATS 告警器。
func NewNATSNotifier(pub Publisher, subject string, logger zerolog.Logger) *NATSNotifier {
	return &NATSNotifier{
		pub:     pub,
		subject: subject,
		logger:  logger.With().Str("component", "alert_nats").Logger(),
	}
}

// Notify publishes the notification. NATS publishes are fire-and-forget, so
// ctx is only checked before sending.
func (n *NATSNotifier) Notify(ctx context.Context, note Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := sonnet.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal nats payload: %w", err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("publish nats alert: %w", err)
	}
	n.logger.Info().Str("subject", n.subject).Str("pair", note.Pair).Msg("告警已发送 (NATS)")
	return nil
}

// ConnectNATS dials a NATS server.
func ConnectNATS(url, clientName string, timeout time.Duration, logger zerolog.Logger) (*nats.Conn, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	log := logger.With().Str("component", "alert_nats").Logger()
	conn, err := nats.Connect(url,
		nats.Name(clientName),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return conn, nil
}

var (
	_ Notifier  = (*NATSNotifier)(nil)
	_ Publisher = (*nats.Conn)(nil)
)
