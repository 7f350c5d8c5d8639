package wstoken

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"

	"grab-relay/internal/core"
)

// Holder is the single process-wide WebSocket token shared by all clients.
type Holder struct {
	mu     sync.RWMutex
	token  string
	subs   map[int]chan string
	nextID int
}

// New returns a holder seeded with initial, or with a random token carrying prefix.
func New(initial, prefix string) (*Holder, error) {
	token := initial
	if token == "" {
		generated, err := Generate(prefix)
		if err != nil {
			return nil, err
		}
		token = generated
	}
	return &Holder{token: token, subs: make(map[int]chan string)}, nil
}

// Generate returns prefix followed by 32 hex chars from 16 random bytes.
func Generate(prefix string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate ws token: %w", err)
	}
	return prefix + hex.EncodeToString(buf), nil
}

func (h *Holder) Get() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Set overwrites the token unconditionally and notifies subscribers.
func (h *Holder) Set(token string) error {
	if token == "" {
		return fmt.Errorf("%w: wsToken must be a string", core.ErrValidation)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = token
	for _, ch := range h.subs {
		offerLatest(ch, token)
	}
	return nil
}

// Subscribe returns a channel that receives the token after every Set.
// A slow reader only ever sees the most recent value.
func (h *Holder) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
}

func (h *Holder) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func offerLatest(ch chan string, token string) {
	select {
	case ch <- token:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- token:
	default:
	}
}
