package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"time"

	"github.com/notifyhub/notification-worker/internal/store"
)

const (
	// Digits is the fixed width of every generated code.
	Digits = 6
	// DefaultTTL is how long a code stays valid in the store.
	DefaultTTL = 300 * time.Second
)

var upperBound = big.NewInt(1_000_000)

// Generator produces one-time codes and stores them under otp:<user_id>.
// Codes are short-lived shared secrets; nothing prevents two users from
// receiving the same code.
type Generator struct {
	store store.Store
	ttl   time.Duration
	rand  io.Reader
}

func NewGenerator(s store.Store, ttl time.Duration) *Generator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Generator{store: s, ttl: ttl, rand: rand.Reader}
}

// Key returns the store key holding the current code for userID.
func Key(userID int64) string {
	return "otp:" + strconv.FormatInt(userID, 10)
}

// Generate draws a code uniformly from [0, 1_000_000), zero-pads it to six
// digits and writes it with the configured expiry, replacing any earlier code.
func (g *Generator) Generate(ctx context.Context, userID int64) (string, error) {
	n, err := rand.Int(g.rand, upperBound)
	if err != nil {
		return "", fmt.Errorf("draw otp: %w", err)
	}
	code := fmt.Sprintf("%0*d", Digits, n.Int64())

	if err := g.store.Set(ctx, Key(userID), []byte(code), g.ttl); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}
