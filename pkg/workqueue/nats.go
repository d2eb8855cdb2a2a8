package workqueue

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/observability"
)

// DefaultNATSSubject is the subject items are published on.
const DefaultNATSSubject = "graphtriple.workqueue"

type publisher interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Drain() error
}

// NATS publishes each item as a message on one subject.
type NATS struct {
	conn    publisher
	subject string
}

// NewNATS connects to the server at url.
func NewNATS(url, subject string) (*NATS, error) {
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url,
		nats.Name("graphtriple"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeNetwork, err, "connect to nats at %s", url)
	}
	return newNATS(conn, subject), nil
}

func newNATS(conn publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultNATSSubject
	}
	return &NATS{conn: conn, subject: subject}
}

// Push implements Queue. It returns once the server has acknowledged the
// flush.
func (n *NATS) Push(ctx context.Context, items []Item) error {
	if len(items) == 0 {
		return nil
	}
	start := time.Now()
	err := n.push(ctx, items)
	observability.Queue().OnPush(ctx, "nats", len(items), time.Since(start), err)
	return err
}

func (n *NATS) push(ctx context.Context, items []Item) error {
	payloads, err := encode(items)
	if err != nil {
		return err
	}
	for _, p := range payloads {
		if err := n.conn.Publish(n.subject, p); err != nil {
			return errors.Wrap(errors.ErrCodeNetwork, err, "publish to %s", n.subject)
		}
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "flush %s", n.subject)
	}
	return nil
}

// Close drains the connection.
func (n *NATS) Close() error {
	return n.conn.Drain()
}

var _ Queue = (*NATS)(nil)
