package transport

import (
	"context"
	"errors"
	"testing"
)

type recordingSender struct {
	addresses []string
}

func (r *recordingSender) Send(_ context.Context, address string, _ Message) error {
	r.addresses = append(r.addresses, address)
	return nil
}

func TestRegistrySend(t *testing.T) {
	t.Parallel()
	rec := &recordingSender{}
	reg := NewRegistry("telegram")
	reg.Register("telegram", rec)

	ctx := context.Background()
	msg := Message{Title: "standup"}

	if err := reg.Send(ctx, "telegram:123", msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Bare address falls back to the default scheme.
	if err := reg.Send(ctx, "456", msg); err != nil {
		t.Fatalf("Send bare: %v", err)
	}
	if len(rec.addresses) != 2 || rec.addresses[0] != "123" || rec.addresses[1] != "456" {
		t.Fatalf("addresses = %v", rec.addresses)
	}
}

func TestRegistryInvalidChannel(t *testing.T) {
	t.Parallel()
	reg := NewRegistry("telegram")
	reg.Register("telegram", &recordingSender{})

	for _, channel := range []string{"", "telegram:", ":123", "smoke:123"} {
		err := reg.Send(context.Background(), channel, Message{})
		if !errors.Is(err, ErrChannelInvalid) {
			t.Fatalf("Send(%q) = %v, want ErrChannelInvalid", channel, err)
		}
	}
}
