package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Guard deduplicates retried redemption submissions.
//
// The protocol has three moves, all backed by single redis commands so they
// stay atomic across engine instances:
//
//	CheckAndReserve  SET key marker NX EX reserveTTL - exactly one concurrent
//	                 caller per key wins the reservation
//	RecordResult     SET key payload EX resultTTL   - winner stores the final
//	                 response after its transaction commits
//	Release          check-and-del via Lua          - winner backs out on a
//	                 transient failure so a genuine retry can reserve again
//
// A reservation the winner never resolves expires with reserveTTL, so a
// crashed instance cannot wedge a key forever. Recorded results expire with
// resultTTL; a resubmission beyond that window is treated as a new attempt.
const reservedMarker = "__reserved__"

// ErrInFlight means another request holds the reservation for this key and
// has not recorded a result yet. Callers surface it as a retryable condition.
var ErrInFlight = errors.New("request with this idempotency key is in flight")

type Guard struct {
	client     *redis.Client
	reserveTTL time.Duration
	resultTTL  time.Duration
}

func NewGuard(client *redis.Client, reserveTTL, resultTTL time.Duration) *Guard {
	return &Guard{
		client:     client,
		reserveTTL: reserveTTL,
		resultTTL:  resultTTL,
	}
}

// Key builds the deduplication key for one user's submission. The code value
// is always part of the key, so a reused nonce on a different code is a new
// attempt, never a replay of the first code's result.
func Key(userID int64, code, clientNonce string) string {
	if clientNonce == "" {
		return fmt.Sprintf("redeem:idem:%d:%s", userID, code)
	}
	return fmt.Sprintf("redeem:idem:%d:%s:%s", userID, code, clientNonce)
}

// CheckAndReserve races for the key. Returns (nil, true, nil) when this
// caller won the reservation, (payload, false, nil) when a recorded result
// exists for replay, and (nil, false, ErrInFlight) when the winner is still
// working.
func (g *Guard) CheckAndReserve(ctx context.Context, key string) ([]byte, bool, error) {
	ok, err := g.client.SetNX(ctx, key, reservedMarker, g.reserveTTL).Result()
	if err != nil {
		return nil, false, err
	}
	if ok {
		return nil, true, nil
	}

	val, err := g.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// Reservation expired between SETNX and GET. The caller retries
			// rather than looping here.
			return nil, false, ErrInFlight
		}
		return nil, false, err
	}

	if val == reservedMarker {
		return nil, false, ErrInFlight
	}

	return []byte(val), false, nil
}

// RecordResult overwrites the reservation with the serialized outcome. The
// stored bytes are replayed verbatim to later duplicates, never re-derived.
func (g *Guard) RecordResult(ctx context.Context, key string, payload []byte) error {
	return g.client.Set(ctx, key, payload, g.resultTTL).Err()
}

// Release drops the reservation, but only while it is still the marker. The
// Lua script keeps check-and-delete atomic so a release racing a concurrent
// RecordResult can never destroy a stored result.
func (g *Guard) Release(ctx context.Context, key string) error {
	script := `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		else
			return 0
		end
	`
	return g.client.Eval(ctx, script, []string{key}, reservedMarker).Err()
}
