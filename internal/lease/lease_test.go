package lease

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestKey(t *testing.T) {
	if got := Key("abc"); got != "lease:job:abc" {
		t.Fatalf("Key = %q", got)
	}
}

func TestNewWithoutRedisIsNoop(t *testing.T) {
	l := New(nil, time.Minute)
	if _, ok := l.(Noop); !ok {
		t.Fatalf("New(nil) = %T, want Noop", l)
	}
	first, err := l.Acquire(context.Background(), "job")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(context.Background(), "job"); err != nil {
		t.Fatalf("Noop must grant concurrent leases: %v", err)
	}
	if err := first.Release(context.Background()); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

// scriptClient answers the lock scripts with canned replies, in call order.
type scriptClient struct {
	redis.Scripter
	replies []*redis.Cmd
	calls   int
}

func (c *scriptClient) next() *redis.Cmd {
	if c.calls >= len(c.replies) {
		return redis.NewCmdResult(nil, errors.New("unexpected script call"))
	}
	r := c.replies[c.calls]
	c.calls++
	return r
}

func (c *scriptClient) EvalSha(ctx context.Context, sha1 string, keys []string, args ...any) *redis.Cmd {
	return c.next()
}

func (c *scriptClient) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	return c.next()
}

func TestRedisLockerAcquire(t *testing.T) {
	tests := []struct {
		name    string
		reply   *redis.Cmd
		wantErr error
	}{
		{name: "obtained", reply: redis.NewCmdResult("OK", nil)},
		{name: "held elsewhere", reply: redis.NewCmdResult(nil, redis.Nil), wantErr: ErrHeld},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &scriptClient{replies: []*redis.Cmd{tt.reply}}
			l, err := NewRedisLocker(client, time.Minute).Acquire(context.Background(), "job-1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Acquire error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && l == nil {
				t.Fatal("expected a lease")
			}
		})
	}
}

func TestRedisLockerBackendError(t *testing.T) {
	boom := errors.New("connection refused")
	client := &scriptClient{replies: []*redis.Cmd{redis.NewCmdResult(nil, boom)}}
	_, err := NewRedisLocker(client, time.Minute).Acquire(context.Background(), "job-1")
	if !errors.Is(err, boom) || errors.Is(err, ErrHeld) {
		t.Fatalf("Acquire error = %v, want backend error", err)
	}
}

func TestRedisLeaseReleaseAfterExpiry(t *testing.T) {
	client := &scriptClient{replies: []*redis.Cmd{
		redis.NewCmdResult("OK", nil),
		// the key expired and was not ours to delete anymore
		redis.NewCmdResult(int64(0), nil),
	}}
	l, err := NewRedisLocker(client, time.Minute).Acquire(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := l.Release(context.Background()); err != nil {
		t.Fatalf("releasing an expired lease must not fail: %v", err)
	}
	if client.calls != 2 {
		t.Fatalf("script calls = %d, want 2", client.calls)
	}
}
