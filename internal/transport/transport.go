// Package transport abstracts outbound notification channels.
//
// A channel string has the form "scheme:address", e.g. "telegram:12345678".
// A bare address without a scheme uses the registry's default scheme.
package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrChannelInvalid marks a channel string that no sender can handle.
// The delivery pipeline treats it as permanent and does not retry.
var ErrChannelInvalid = errors.New("invalid channel")

type Message struct {
	Title string
	Body  string
}

// Sender delivers a message to one channel address.
type Sender interface {
	Send(ctx context.Context, address string, msg Message) error
}

// Registry routes channel strings to scheme-specific senders.
type Registry struct {
	mu            sync.RWMutex
	senders       map[string]Sender
	defaultScheme string
}

func NewRegistry(defaultScheme string) *Registry {
	return &Registry{senders: make(map[string]Sender), defaultScheme: defaultScheme}
}

func (r *Registry) Register(scheme string, s Sender) {
	r.mu.Lock()
	r.senders[scheme] = s
	r.mu.Unlock()
}

// Send splits channel into scheme and address and dispatches to the
// registered sender. Unknown schemes and empty addresses return
// ErrChannelInvalid.
func (r *Registry) Send(ctx context.Context, channel string, msg Message) error {
	scheme, address, found := strings.Cut(channel, ":")
	if !found {
		scheme, address = r.defaultScheme, channel
	}
	scheme = strings.TrimSpace(scheme)
	address = strings.TrimSpace(address)
	if scheme == "" || address == "" {
		return fmt.Errorf("%w: %q", ErrChannelInvalid, channel)
	}

	r.mu.RLock()
	s, ok := r.senders[scheme]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: unknown scheme %q", ErrChannelInvalid, scheme)
	}
	return s.Send(ctx, address, msg)
}
