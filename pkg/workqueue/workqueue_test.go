package workqueue

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matzehuels/graphtriple/pkg/errors"
	"github.com/matzehuels/graphtriple/pkg/graph"
)

var now = time.Date(2015, 5, 21, 8, 42, 22, 0, time.UTC)

func TestItemJSON(t *testing.T) {
	it := NewItem(graph.EdgeRef("e1"), PriorityHigh, "people.nt", now)
	b, err := json.Marshal(it)
	if err != nil {
		t.Fatal(err)
	}

	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{
		"elementType": "edge",
		"elementId":   "e1",
		"priority":    "high",
		"source":      "people.nt",
		"pushedAt":    "2015-05-21T08:42:22Z",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %v", k, got[k], v)
		}
	}

	var back Item
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != it.ID || back.Priority != PriorityHigh {
		t.Errorf("decoded item = %+v, want %+v", back, it)
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"", PriorityNormal, false},
		{"LOW", PriorityLow, false},
		{"high", PriorityHigh, false},
		{"urgent", PriorityNormal, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePriority(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParsePriority(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOpen(t *testing.T) {
	q, err := Open(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := q.(Null); !ok {
		t.Errorf("Open() default = %T, want Null", q)
	}
	if _, err := Open(Options{Backend: "kafka"}); !errors.Is(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("Open(kafka) error = %v, want INVALID_CONFIG", err)
	}
}

type fakeRedis struct {
	key    string
	values []any
	fails  int
}

func (f *fakeRedis) LPush(ctx context.Context, key string, values ...any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if f.fails > 0 {
		f.fails--
		cmd.SetErr(stderrors.New("connection refused"))
		return cmd
	}
	f.key = key
	f.values = append(f.values, values...)
	cmd.SetVal(int64(len(f.values)))
	return cmd
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisPush(t *testing.T) {
	f := &fakeRedis{}
	q := newRedis(f, "")
	items := []Item{
		NewItem(graph.VertexRef("v1"), PriorityNormal, "", now),
		NewItem(graph.VertexRef("v2"), PriorityNormal, "", now),
	}
	if err := q.Push(context.Background(), items); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if f.key != DefaultRedisKey {
		t.Errorf("key = %q, want %q", f.key, DefaultRedisKey)
	}
	if len(f.values) != 2 {
		t.Fatalf("pushed %d values, want 2", len(f.values))
	}
	var it Item
	if err := json.Unmarshal(f.values[1].([]byte), &it); err != nil {
		t.Fatal(err)
	}
	if it.ElementID != "v2" {
		t.Errorf("second value = %+v", it)
	}
}

func TestRedisPushRetries(t *testing.T) {
	f := &fakeRedis{fails: 1}
	q := newRedis(f, "k")
	if err := q.Push(context.Background(), []Item{NewItem(graph.VertexRef("v1"), PriorityNormal, "", now)}); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if len(f.values) != 1 {
		t.Errorf("pushed %d values after retry, want 1", len(f.values))
	}
}

type fakeConn struct {
	subject  string
	messages [][]byte
	flushed  bool
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subject = subject
	f.messages = append(f.messages, data)
	return nil
}

func (f *fakeConn) FlushWithContext(context.Context) error {
	f.flushed = true
	return nil
}

func (f *fakeConn) Drain() error { return nil }

func TestNATSPush(t *testing.T) {
	f := &fakeConn{}
	q := newNATS(f, "")
	items := []Item{NewItem(graph.VertexRef("v1"), PriorityLow, "a.nt", now)}
	if err := q.Push(context.Background(), items); err != nil {
		t.Fatalf("Push() error: %v", err)
	}
	if f.subject != DefaultNATSSubject || len(f.messages) != 1 || !f.flushed {
		t.Errorf("subject=%q messages=%d flushed=%v", f.subject, len(f.messages), f.flushed)
	}

	f.err = stderrors.New("closed")
	if err := q.Push(context.Background(), items); !errors.Is(err, errors.ErrCodeNetwork) {
		t.Errorf("Push() error = %v, want NETWORK_ERROR", err)
	}
}

func TestPushNothing(t *testing.T) {
	f := &fakeConn{}
	if err := newNATS(f, "s").Push(context.Background(), nil); err != nil || f.flushed {
		t.Errorf("empty push: err=%v flushed=%v", err, f.flushed)
	}
}
