package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"agritrace/internal/bootstrap/logging"
	"agritrace/internal/domain/lot"
	"agritrace/internal/errs"
	"agritrace/internal/ports"
)

// natsConn is the subset of *nats.Conn the publisher needs.
type natsConn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
}

// NATSPublisher emits lot events on `<prefix>.lot.<status-slug>`. The
// Nats-Msg-Id header is `<lotId>:<seq>` so consumers can drop redeliveries.
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

func NewNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "agritrace"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Dial connects to url and returns a publisher plus a drain function for
// shutdown.
func Dial(ctx context.Context, url string, prefix string) (*NATSPublisher, func() error, error) {
	if strings.TrimSpace(url) == "" {
		return nil, nil, errors.New("nats.url is required")
	}

	logCtx := logging.WithAttrs(ctx, slog.String("component", "messaging.nats"))
	conn, err := nats.Connect(url,
		nats.Name("agritrace"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logging.Info(logCtx, "nats reconnected", slog.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, nil, errs.Wrap(err, "connect nats")
	}

	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))
	return NewNATSPublisher(conn, prefix), conn.Drain, nil
}

func (p *NATSPublisher) Subject(status string) string {
	return fmt.Sprintf("%s.lot.%s", p.prefix, lot.Status(status).Slug())
}

func (p *NATSPublisher) Publish(ctx context.Context, msg ports.LotEventMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(err, "encode lot event")
	}

	out := nats.NewMsg(p.Subject(msg.Status))
	out.Data = payload
	out.Header.Set(nats.MsgIdHdr, fmt.Sprintf("%s:%d", msg.LotID, msg.Seq))
	out.Header.Set("Content-Type", "application/json")

	if err := p.conn.PublishMsg(out); err != nil {
		return errs.Wrapf(err, "publish %s", out.Subject)
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return errs.Wrap(err, "flush nats")
	}
	return nil
}
