// Package cache fronts immutable reference data with Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/account-authority/internal/model"
)

const rolePrefix = "authority:role:"

// KV is the slice of the go-redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RoleLoader reads a role from the authoritative store.
type RoleLoader func(ctx context.Context, name model.RoleName) (model.Role, error)

// Roles caches role-name lookups. A nil *Roles or a nil KV passes every
// lookup straight to the loader; Redis errors are logged and ignored.
type Roles struct {
	kv  KV
	ttl time.Duration
	log *zap.Logger
}

func NewRoles(kv KV, ttl time.Duration, log *zap.Logger) *Roles {
	if log == nil {
		log = zap.NewNop()
	}
	return &Roles{kv: kv, ttl: ttl, log: log}
}

// Resolve returns the cached role for name, falling back to load on a miss.
// Only successful loads are cached.
func (r *Roles) Resolve(ctx context.Context, name model.RoleName, load RoleLoader) (model.Role, error) {
	if r == nil || r.kv == nil {
		return load(ctx, name)
	}
	key := rolePrefix + string(name)

	raw, err := r.kv.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var role model.Role
		if jerr := json.Unmarshal(raw, &role); jerr == nil && role.ID != 0 {
			return role, nil
		}
		r.log.Warn("discarding malformed cached role", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		r.log.Warn("role cache read failed", zap.String("key", key), zap.Error(err))
	}

	role, err := load(ctx, name)
	if err != nil {
		return model.Role{}, err
	}
	if body, jerr := json.Marshal(role); jerr == nil {
		if serr := r.kv.Set(ctx, key, body, r.ttl).Err(); serr != nil {
			r.log.Warn("role cache write failed", zap.String("key", key), zap.Error(serr))
		}
	}
	return role, nil
}
