package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func benchmarkRoomBroadcast(b *testing.B, recipients int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub, err := NewHub(Options{ModerationTimeout: time.Second, Moderator: allowAll})
	if err != nil {
		b.Fatalf("new hub: %v", err)
	}
	go hub.Run(ctx)

	drainUntilDone := func(s *Session) {
		for {
			select {
			case <-s.Events:
			case <-ctx.Done():
				return
			}
		}
	}

	sender := NewSession("sender", "sender")
	hub.RegisterClient(sender)
	if err := hub.Join(ctx, sender, "General", ""); err != nil {
		b.Fatalf("join: %v", err)
	}
	go drainUntilDone(sender)

	clients := make([]*Session, 0, recipients)
	for i := range recipients {
		c := NewSession(fmt.Sprintf("c%d", i), "client")
		hub.RegisterClient(c)
		if err := hub.Join(ctx, c, "General", ""); err != nil {
			b.Fatalf("join: %v", err)
		}
		clients = append(clients, c)
	}

	// Drain events for all but the first recipient to avoid channel backpressure.
	target := clients[0]
	drain(target.Events)
	for _, c := range clients[1:] {
		go drainUntilDone(c)
	}

	b.ReportAllocs()

	for b.Loop() {
		if _, err := hub.SendMessage(sender, "General", "payload", ""); err != nil {
			b.Fatalf("send: %v", err)
		}
		for ev := range target.Events {
			if ev.Kind == EventNewMessage {
				break
			}
		}
	}
}

func BenchmarkRoomBroadcast_10(b *testing.B)  { benchmarkRoomBroadcast(b, 10) }
func BenchmarkRoomBroadcast_100(b *testing.B) { benchmarkRoomBroadcast(b, 100) }
func BenchmarkRoomBroadcast_500(b *testing.B) { benchmarkRoomBroadcast(b, 500) }
