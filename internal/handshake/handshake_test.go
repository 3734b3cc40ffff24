package handshake_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/glizzus/lavanode/internal/handshake"
)

type server struct {
	Token    string
	Endpoint string
}

func TestAwaitBothResolvesInAnyOrder(t *testing.T) {
	tests := []struct {
		name        string
		serverFirst bool
	}{
		{name: "state first", serverFirst: false},
		{name: "server first", serverFirst: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := handshake.New[string, server]()

			go func() {
				if tt.serverFirst {
					_ = c.ResolveServer(server{Token: "tok", Endpoint: "us-east1.discord.media"})
					_ = c.ResolveState("session-1")
				} else {
					_ = c.ResolveState("session-1")
					_ = c.ResolveServer(server{Token: "tok", Endpoint: "us-east1.discord.media"})
				}
			}()

			state, srv, err := c.AwaitBoth(context.Background(), time.Second)
			if err != nil {
				t.Fatalf("AwaitBoth() returned error: %v", err)
			}
			if state != "session-1" || srv.Token != "tok" || srv.Endpoint != "us-east1.discord.media" {
				t.Errorf("AwaitBoth() = (%q, %+v)", state, srv)
			}
		})
	}
}

func TestAwaitBothTimesOutWithOneSlot(t *testing.T) {
	tests := []struct {
		name    string
		resolve func(c *handshake.Coordinator[string, server])
	}{
		{
			name:    "only state",
			resolve: func(c *handshake.Coordinator[string, server]) { _ = c.ResolveState("session-1") },
		},
		{
			name:    "only server",
			resolve: func(c *handshake.Coordinator[string, server]) { _ = c.ResolveServer(server{Token: "tok"}) },
		},
		{
			name:    "nothing",
			resolve: func(c *handshake.Coordinator[string, server]) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := handshake.New[string, server]()
			tt.resolve(c)

			state, srv, err := c.AwaitBoth(context.Background(), 20*time.Millisecond)
			if !errors.Is(err, handshake.ErrTimeout) {
				t.Fatalf("AwaitBoth() error = %v, want ErrTimeout", err)
			}
			if state != "" || srv != (server{}) {
				t.Errorf("AwaitBoth() leaked a partial result: (%q, %+v)", state, srv)
			}
		})
	}
}

func TestSecondResolutionIsRejected(t *testing.T) {
	c := handshake.New[string, server]()

	if err := c.ResolveState("first"); err != nil {
		t.Fatalf("ResolveState() returned error: %v", err)
	}
	if err := c.ResolveState("second"); !errors.Is(err, handshake.ErrAlreadyResolved) {
		t.Fatalf("second ResolveState() error = %v, want ErrAlreadyResolved", err)
	}
	if err := c.ResolveServer(server{Token: "a"}); err != nil {
		t.Fatalf("ResolveServer() returned error: %v", err)
	}
	if err := c.ResolveServer(server{Token: "b"}); !errors.Is(err, handshake.ErrAlreadyResolved) {
		t.Fatalf("second ResolveServer() error = %v, want ErrAlreadyResolved", err)
	}

	state, srv, err := c.AwaitBoth(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("AwaitBoth() returned error: %v", err)
	}
	if state != "first" || srv.Token != "a" {
		t.Errorf("AwaitBoth() = (%q, %+v), want first values", state, srv)
	}
}

func TestCoordinatorIsSingleUse(t *testing.T) {
	c := handshake.New[string, server]()

	if _, _, err := c.AwaitBoth(context.Background(), time.Millisecond); !errors.Is(err, handshake.ErrTimeout) {
		t.Fatalf("AwaitBoth() error = %v, want ErrTimeout", err)
	}

	_ = c.ResolveState("late")
	_ = c.ResolveServer(server{Token: "late"})
	if _, _, err := c.AwaitBoth(context.Background(), time.Second); !errors.Is(err, handshake.ErrConsumed) {
		t.Fatalf("reused AwaitBoth() error = %v, want ErrConsumed", err)
	}
}

func TestAwaitBothHonoursContext(t *testing.T) {
	c := handshake.New[string, server]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := c.AwaitBoth(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("AwaitBoth() error = %v, want context.Canceled", err)
	}
}

func TestConcurrentResolveSetsOnce(t *testing.T) {
	c := handshake.New[int, int]()

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.ResolveState(i); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 1 {
		t.Errorf("accepted %d state resolutions, want 1", accepted)
	}
	if state, server := c.Resolved(); !state || server {
		t.Errorf("Resolved() = (%v, %v), want (true, false)", state, server)
	}
}
