package tokenguard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-payment-gateway/internal/logger"
)

const keyPrefix = "payment_token:"

// Guard enforces the single-use property of payment tokens: a token that
// has already been submitted to a charge attempt is refused on any later
// attempt. Keys expire, since tokens are short-lived on the processor side
// anyway.
type Guard struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewGuard(client *redis.Client, log *logger.Logger) *Guard {
	return &Guard{Client: client, Logger: log}
}

// getTokenTTL returns the guard TTL from the environment or the default.
func (g *Guard) getTokenTTL() time.Duration {
	defaultTTL := 30 * time.Minute

	ttlStr := os.Getenv("TOKEN_GUARD_TTL_MINUTES")
	if ttlStr == "" {
		return defaultTTL
	}

	ttlMin, err := strconv.Atoi(ttlStr)
	if err != nil {
		g.Logger.Warn("TOKENGUARD", fmt.Sprintf("invalid TOKEN_GUARD_TTL_MINUTES value %q, using default 30 minutes", ttlStr))
		return defaultTTL
	}
	return time.Duration(ttlMin) * time.Minute
}

// keyFor hashes the token so the raw value never lands in Redis or logs.
func keyFor(token string) string {
	sum := sha256.Sum256([]byte(token))
	return keyPrefix + hex.EncodeToString(sum[:])
}

// Consume marks the token as used. Returns false when the token was already
// consumed by an earlier attempt.
func (g *Guard) Consume(ctx context.Context, token string) (bool, error) {
	ok, err := g.Client.SetNX(ctx, keyFor(token), time.Now().UTC().Format(time.RFC3339), g.getTokenTTL()).Result()
	if err != nil {
		return false, fmt.Errorf("token guard error: %w", err)
	}
	if !ok {
		g.Logger.LogSecurity("TOKEN_REUSE", "refused a payment token that was already consumed")
	}
	return ok, nil
}

// Release frees a consumed token. Only called when the charge request never
// left the process (for example a configuration error), so the shopper may
// retry with the same token.
func (g *Guard) Release(ctx context.Context, token string) error {
	if err := g.Client.Del(ctx, keyFor(token)).Err(); err != nil {
		return fmt.Errorf("token guard release error: %w", err)
	}
	return nil
}
