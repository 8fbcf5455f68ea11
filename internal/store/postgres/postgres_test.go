package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/vovakirdan/modchat-server/internal/store"
	"github.com/vovakirdan/modchat-server/internal/store/storetest"
)

// Set MODCHAT_TEST_POSTGRES_DSN to run against a live database.
func TestPostgresStoreContract(t *testing.T) {
	dsn := os.Getenv("MODCHAT_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MODCHAT_TEST_POSTGRES_DSN not set")
	}

	storetest.Run(t, func(t *testing.T) store.MessageStore {
		s, err := New(context.Background(), dsn)
		if err != nil {
			t.Fatalf("connect: %v", err)
		}
		if _, err := s.pool.Exec(context.Background(), `TRUNCATE messages`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestNewRejectsBadDSN(t *testing.T) {
	if _, err := New(context.Background(), "postgres://%zz"); err == nil {
		t.Fatal("expected error for malformed dsn")
	}
}
