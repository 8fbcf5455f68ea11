package core

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/vovakirdan/modchat-server/internal/moderation"
	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/store/memory"
)

type moderatorFunc func(ctx context.Context, text string) (moderation.Verdict, error)

func (f moderatorFunc) Moderate(ctx context.Context, text string) (moderation.Verdict, error) {
	return f(ctx, text)
}

func verdictModerator(v moderation.Verdict) Moderator {
	return moderatorFunc(func(context.Context, string) (moderation.Verdict, error) {
		return v, nil
	})
}

var allowAll = verdictModerator(moderation.Verdict{Action: moderation.ActionAllow, Labels: []string{}})

// hangingModerator never answers on its own; it returns once ctx expires.
var hangingModerator = moderatorFunc(func(ctx context.Context, _ string) (moderation.Verdict, error) {
	<-ctx.Done()
	return moderation.Verdict{}, ctx.Err()
})

// gatedStore parks every SaveMessage until release is closed and signals
// saving when one starts.
type gatedStore struct {
	*memory.MemoryStore
	saving  chan struct{}
	release chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{
		MemoryStore: memory.New(),
		saving:      make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
}

func (g *gatedStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	select {
	case g.saving <- struct{}{}:
	default:
	}
	<-g.release
	return g.MemoryStore.SaveMessage(ctx, msg)
}

// recordingStore remembers the limits history reads were made with.
type recordingStore struct {
	*memory.MemoryStore

	mu           sync.Mutex
	fullListings int
	limits       []int
}

func (r *recordingStore) ListMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		r.mu.Lock()
		r.fullListings++
		r.mu.Unlock()
	}
	return r.MemoryStore.ListMessages(ctx, room, limit)
}

func (r *recordingStore) ListVisibleMessages(ctx context.Context, room string, limit int) ([]*store.Message, error) {
	r.mu.Lock()
	r.limits = append(r.limits, limit)
	r.mu.Unlock()
	return r.MemoryStore.ListVisibleMessages(ctx, room, limit)
}

func newTestHub(t *testing.T, opts Options) *Hub {
	t.Helper()

	if opts.ModerationTimeout == 0 {
		opts.ModerationTimeout = time.Second
	}
	if opts.Moderator == nil {
		opts.Moderator = allowAll
	}
	if opts.DefaultChannels == nil {
		opts.DefaultChannels = []string{"General", "Tech"}
	}

	hub, err := NewHub(opts)
	if err != nil {
		t.Fatalf("new hub: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func connect(t *testing.T, hub *Hub, id string) *Session {
	t.Helper()
	s := NewSession(id, "")
	hub.RegisterClient(s)
	return s
}

func mustJoin(t *testing.T, hub *Hub, s *Session, room, name string) {
	t.Helper()
	if err := hub.Join(context.Background(), s, room, name); err != nil {
		t.Fatalf("%s join %s: %v", name, room, err)
	}
}

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()
	return mustEventOf(t, ch, kind)
}

// mustEventOf returns the first event whose kind is one of kinds, skipping
// everything else.
func mustEventOf(t *testing.T, ch <-chan *Event, kinds ...EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if slices.Contains(kinds, ev.Kind) {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kinds)
	return nil
}

// noEvent fails if an event of kind arrives within wait.
func noEvent(t *testing.T, ch <-chan *Event, kind EventKind, wait time.Duration) {
	t.Helper()

	deadline := time.After(wait)
	for {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		case <-deadline:
			return
		}
	}
}

// drain discards queued events.
func drain(ch <-chan *Event) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}
