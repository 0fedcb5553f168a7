package sink

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ghalamif/mlatflow/internal/adapters/wire"
	"github.com/ghalamif/mlatflow/internal/domain"
)

func TestRedisSinkPublishesGroups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	ctx := context.Background()
	sub := client.Subscribe(ctx, "mlat:groups")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	sink := NewRedisSink(client, "mlat:groups")
	if err := sink.WriteGroups([]domain.EligibleGroup{testGroup()}); err != nil {
		t.Fatalf("write groups: %v", err)
	}

	var msg *redis.Message
	select {
	case msg = <-sub.Channel():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published group")
	}

	got, err := wire.DecodeGroup([]byte(msg.Payload))
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if got.Payload != "8d4840d6" || len(got.Members) != 3 || got.Members[1].Station != "bravo" {
		t.Fatalf("unexpected message: %+v", got)
	}
}

func TestRedisSinkNoGroups(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	if err := NewRedisSink(client, "mlat:groups").WriteGroups(nil); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}

func TestRedisSinkReportsConnectionErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	if err := NewRedisSink(client, "mlat:groups").WriteGroups([]domain.EligibleGroup{testGroup()}); err == nil {
		t.Fatalf("expected error when redis is down")
	}
}
