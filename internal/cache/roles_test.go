package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/account-authority/internal/model"
)

type fakeKV struct {
	data    map[string]string
	getErr  error
	sets    int
	lastTTL time.Duration
}

func (f *fakeKV) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeKV) Set(_ context.Context, key string, value any, exp time.Duration) *redis.StatusCmd {
	f.sets++
	f.lastTTL = exp
	f.data[key] = string(value.([]byte))
	return redis.NewStatusResult("OK", nil)
}

func countingLoader(calls *int) RoleLoader {
	return func(_ context.Context, name model.RoleName) (model.Role, error) {
		*calls++
		return model.Role{ID: 4, Name: name}, nil
	}
}

func TestResolveCachesAfterFirstLoad(t *testing.T) {
	kv := &fakeKV{data: map[string]string{}}
	c := NewRoles(kv, time.Minute, nil)
	calls := 0

	for i := 0; i < 3; i++ {
		role, err := c.Resolve(context.Background(), model.RoleCustomer, countingLoader(&calls))
		require.NoError(t, err)
		assert.Equal(t, model.Role{ID: 4, Name: model.RoleCustomer}, role)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, kv.sets)
	assert.Equal(t, time.Minute, kv.lastTTL)
}

func TestResolveNilCachePassesThrough(t *testing.T) {
	var c *Roles
	calls := 0
	_, err := c.Resolve(context.Background(), model.RoleAdmin, countingLoader(&calls))
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestResolveIgnoresRedisErrors(t *testing.T) {
	kv := &fakeKV{data: map[string]string{}, getErr: errors.New("connection refused")}
	calls := 0
	role, err := NewRoles(kv, time.Minute, nil).Resolve(context.Background(), model.RoleEmployee, countingLoader(&calls))
	require.NoError(t, err)
	assert.Equal(t, model.RoleEmployee, role.Name)
	assert.Equal(t, 1, calls)
}

func TestResolveDoesNotCacheLoadErrors(t *testing.T) {
	kv := &fakeKV{data: map[string]string{}}
	missing := errors.New("missing")
	_, err := NewRoles(kv, time.Minute, nil).Resolve(context.Background(), model.RoleAdmin,
		func(context.Context, model.RoleName) (model.Role, error) { return model.Role{}, missing })
	assert.ErrorIs(t, err, missing)
	assert.Zero(t, kv.sets)
}
