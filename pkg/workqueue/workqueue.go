// Package workqueue announces imported elements to downstream workers.
//
// After a triple stream is imported and flushed, the importer pushes one
// [Item] per changed element so that indexers and enrichment workers can
// pick them up. Three backends are provided: [Null] drops items, [Redis]
// pushes JSON onto a list with LPUSH, and [NATS] publishes JSON on a
// subject.
package workqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
)

// Priority orders work for consumers that support it.
type Priority int

const (
	PriorityLow Priority = iota - 1
	PriorityNormal
	PriorityHigh
)

// String returns "low", "normal" or "high".
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	}
	return "normal"
}

// ParsePriority parses the String form. The empty string is normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	case "high":
		return PriorityHigh, nil
	}
	return PriorityNormal, errors.New(errors.ErrCodeInvalidInput, "unknown priority %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Item is one changed element.
type Item struct {
	ID          uuid.UUID `json:"id"`
	ElementType string    `json:"elementType"`
	ElementID   string    `json:"elementId"`
	Priority    Priority  `json:"priority"`
	Source      string    `json:"source,omitempty"`
	PushedAt    time.Time `json:"pushedAt"`
}

// NewItem returns an item for ref with a fresh id.
func NewItem(ref graph.Ref, p Priority, source string, now time.Time) Item {
	return Item{
		ID:          uuid.New(),
		ElementType: ref.Type.String(),
		ElementID:   ref.ID,
		Priority:    p,
		Source:      source,
		PushedAt:    now.UTC(),
	}
}

// Queue receives items.
type Queue interface {
	Push(ctx context.Context, items []Item) error
	Close() error
}

// Queue backends.
const (
	BackendNone  = "none"
	BackendRedis = "redis"
	BackendNATS  = "nats"
)

// Options selects and configures a backend for Open.
type Options struct {
	Backend     string
	RedisAddr   string
	RedisKey    string
	NATSURL     string
	NATSSubject string
}

// Open returns the queue described by opts.
func Open(opts Options) (Queue, error) {
	switch opts.Backend {
	case "", BackendNone:
		return Null{}, nil
	case BackendRedis:
		return NewRedis(opts.RedisAddr, opts.RedisKey), nil
	case BackendNATS:
		return NewNATS(opts.NATSURL, opts.NATSSubject)
	}
	return nil, errors.New(errors.ErrCodeInvalidConfig, "unknown queue backend %q", opts.Backend)
}

// Null discards every item.
type Null struct{}

// Push implements Queue.
func (Null) Push(context.Context, []Item) error { return nil }

// Close implements Queue.
func (Null) Close() error { return nil }

func encode(items []Item) ([][]byte, error) {
	out := make([][]byte, len(items))
	for i, it := range items {
		b, err := json.Marshal(it)
		if err != nil {
			return nil, fmt.Errorf("encode item %s: %w", it.ElementID, err)
		}
		out[i] = b
	}
	return out, nil
}

var _ Queue = Null{}
