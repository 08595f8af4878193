package rules

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestVerificationStores(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	stores := map[string]VerificationStore{
		"memory": NewMemoryVerificationStore(),
		"redis":  NewRedisVerificationStore(client),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if store.IsVerified(ctx, 7, "u1") {
				t.Fatal("fresh store reports a verification")
			}

			if err := store.MarkVerified(ctx, 7, "u1"); err != nil {
				t.Fatalf("MarkVerified() error = %v", err)
			}
			if !store.IsVerified(ctx, 7, "u1") {
				t.Fatal("verification not recorded")
			}

			// Marks are scoped per (quiz, user)
			if store.IsVerified(ctx, 8, "u1") {
				t.Error("verification leaked to another quiz")
			}
			if store.IsVerified(ctx, 7, "u2") {
				t.Error("verification leaked to another user")
			}

			if err := store.Clear(ctx, 7, "u1"); err != nil {
				t.Fatalf("Clear() error = %v", err)
			}
			if store.IsVerified(ctx, 7, "u1") {
				t.Fatal("verification survived Clear")
			}

			// Clearing an absent mark is a no-op
			if err := store.Clear(ctx, 7, "u1"); err != nil {
				t.Errorf("Clear() on empty store error = %v", err)
			}
		})
	}
}

func TestRedisVerificationStore_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := NewRedisVerificationStore(client)
	ctx := context.Background()

	if err := store.MarkVerified(ctx, 3, "u9"); err != nil {
		t.Fatalf("MarkVerified() error = %v", err)
	}

	mr.FastForward(verificationTTL / 2)
	if !store.IsVerified(ctx, 3, "u9") {
		t.Fatal("verification expired before its TTL")
	}

	mr.FastForward(verificationTTL)
	if store.IsVerified(ctx, 3, "u9") {
		t.Fatal("verification outlived its TTL")
	}
}
