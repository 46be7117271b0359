package relay

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Registry tracks which identities are claimed. The redis implementation
// makes claims unique across relay instances; frame routing itself stays per
// instance, so all peers of one session must connect to the same instance.
type Registry interface {
	// Claim reserves identity for instance. Returns false if another
	// holder already has it.
	Claim(ctx context.Context, identity, instance string) (bool, error)

	// Release frees identity.
	Release(ctx context.Context, identity string) error
}

// claimTTL bounds how long a crashed relay instance can hold identities in
// the shared registry.
const claimTTL = 12 * time.Hour

type MemoryRegistry struct {
	mu     sync.Mutex
	claims map[string]string
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{claims: make(map[string]string)}
}

func (r *MemoryRegistry) Claim(_ context.Context, identity, instance string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[identity]; ok {
		return false, nil
	}
	r.claims[identity] = instance
	return true, nil
}

func (r *MemoryRegistry) Release(_ context.Context, identity string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.claims, identity)
	return nil
}

type RedisRegistry struct {
	redis  redis.UniversalClient
	prefix string
}

func NewRedisRegistry(rc redis.UniversalClient, prefix string) *RedisRegistry {
	return &RedisRegistry{redis: rc, prefix: prefix}
}

func (r *RedisRegistry) Claim(ctx context.Context, identity, instance string) (bool, error) {
	return r.redis.SetNX(ctx, r.key(identity), instance, claimTTL).Result()
}

func (r *RedisRegistry) Release(ctx context.Context, identity string) error {
	return r.redis.Del(ctx, r.key(identity)).Err()
}

func (r *RedisRegistry) key(identity string) string {
	return r.prefix + ":identity:" + identity
}
