package workload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pior/respkv"
)

func init() {
	Register(&MixedWorkload{})
	Register(&GetWorkload{})
	Register(&GetHeavyWorkload{})
	Register(&SetHeavyWorkload{})
	Register(&ScanWorkload{})
}

var hotKeyCount atomic.Int32

func init() {
	// Default: 10 hot keys
	hotKeyCount.Store(10)
}

// SetHotKeyCount configures the number of hot keys for workloads
func SetHotKeyCount(count int) {
	hotKeyCount.Store(int32(count))
}

// do runs one command and checks the reply for a server error.
// A nil reply is a miss, not a failure.
func do(ctx context.Context, s *respkv.Session, args ...any) error {
	reply, err := s.Do(ctx, args...)
	if err != nil {
		return err
	}
	defer reply.Release()
	return reply.Err()
}

// get reads a string value and tolerates misses.
func get(ctx context.Context, s *respkv.Session, key string) error {
	reply, err := s.Do(ctx, "GET", key)
	if err != nil {
		return err
	}
	defer reply.Release()

	if err := reply.Err(); err != nil {
		return err
	}
	if _, err := respkv.As[string](reply); err != nil && !errors.Is(err, respkv.ErrNil) {
		return err
	}
	return nil
}

// MixedWorkload performs a realistic mix of operations
type MixedWorkload struct{}

func (w *MixedWorkload) Name() string {
	return "mixed"
}

func (w *MixedWorkload) Description() string {
	return "Mixed operations: 60% GET, 30% SET, 5% DEL, 5% INCR"
}

func (w *MixedWorkload) Execute(ctx context.Context, s *respkv.Session, workerID int) error {
	// Skewed distribution to simulate hot keys
	var key string
	if rand.Float64() < 0.3 {
		key = fmt.Sprintf("hot-key-%d", rand.IntN(int(hotKeyCount.Load())))
	} else {
		key = fmt.Sprintf("key-worker%d-%d", workerID, rand.IntN(1000))
	}

	op := rand.Float64()

	switch {
	case op < 0.60:
		return get(ctx, s, key)

	case op < 0.90:
		value := fmt.Sprintf("value-%d-%d", workerID, time.Now().UnixNano())
		ttl := 30 + rand.IntN(60)
		return do(ctx, s, "SET", key, value, "EX", ttl)

	case op < 0.95:
		return do(ctx, s, "DEL", key)

	default:
		reply, err := s.Do(ctx, "INCR", fmt.Sprintf("counter-worker%d", workerID))
		if err != nil {
			return err
		}
		defer reply.Release()
		_, err = respkv.As[int64](reply)
		return err
	}
}

type GetWorkload struct{}

func (w *GetWorkload) Name() string {
	return "get"
}

func (w *GetWorkload) Description() string {
	return "Read-only workload: 100% GET"
}

func (w *GetWorkload) Execute(ctx context.Context, s *respkv.Session, workerID int) error {
	return get(ctx, s, fmt.Sprintf("key-%d", rand.IntN(1000)))
}

// GetHeavyWorkload is heavily weighted towards reads
type GetHeavyWorkload struct{}

func (w *GetHeavyWorkload) Name() string {
	return "get-heavy"
}

func (w *GetHeavyWorkload) Description() string {
	return "Read-heavy workload: 95% GET, 5% SET"
}

func (w *GetHeavyWorkload) Execute(ctx context.Context, s *respkv.Session, workerID int) error {
	key := fmt.Sprintf("key-%d", rand.IntN(1000))

	if rand.Float64() < 0.95 {
		return get(ctx, s, key)
	}
	return do(ctx, s, "SET", key, strings.Repeat("A", 100), "EX", 60)
}

// SetHeavyWorkload is heavily weighted towards writes
type SetHeavyWorkload struct{}

func (w *SetHeavyWorkload) Name() string {
	return "set-heavy"
}

func (w *SetHeavyWorkload) Description() string {
	return "Write-heavy workload: 20% GET, 80% SET"
}

func (w *SetHeavyWorkload) Execute(ctx context.Context, s *respkv.Session, workerID int) error {
	key := fmt.Sprintf("key-worker%d-%d", workerID, rand.IntN(100))

	if rand.Float64() < 0.20 {
		return get(ctx, s, key)
	}
	value := fmt.Sprintf("value-%d-%d", workerID, time.Now().UnixNano())
	return do(ctx, s, "SET", key, value, "EX", 30)
}

// ScanWorkload walks the key space with SCAN, one page per operation.
type ScanWorkload struct{}

func (w *ScanWorkload) Name() string {
	return "scan"
}

func (w *ScanWorkload) Description() string {
	return "Key space walk: SCAN pages of 100 keys"
}

func (w *ScanWorkload) Execute(ctx context.Context, s *respkv.Session, workerID int) error {
	var cursor uint64
	for {
		reply, err := s.Do(ctx, "SCAN", cursor, "COUNT", 100)
		if err != nil {
			return err
		}

		var keys []string
		ok, err := reply.DecodeScanInto(&cursor, &keys)
		reply.Release()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("unexpected SCAN reply")
		}
		if cursor == 0 {
			return nil
		}
	}
}
