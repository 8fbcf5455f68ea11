package redis

import (
	"context"
	"os"
	"testing"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/store/storetest"
	"github.com/vovakirdan/modchat-server/internal/utils"
)

// Set MODCHAT_TEST_REDIS_ADDR (host:port) to run against a live server.
func TestRedisStoreContract(t *testing.T) {
	addr := os.Getenv("MODCHAT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MODCHAT_TEST_REDIS_ADDR not set")
	}

	storetest.Run(t, func(t *testing.T) store.MessageStore {
		client := goredis.NewClient(&goredis.Options{Addr: addr})
		if err := client.Ping(context.Background()).Err(); err != nil {
			t.Fatalf("ping redis: %v", err)
		}
		// Unique prefix keeps subtests isolated on a shared server.
		return NewWithClient(client, "modchat-test:"+utils.NewID()+":")
	})
}

func TestNewRejectsBadURL(t *testing.T) {
	if _, err := New(context.Background(), "://not-a-url"); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
