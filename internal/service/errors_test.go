package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", unauthorized(msgInvalidToken))
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrForbidden)
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.Equal(t, msgInvalidToken, MessageOf(err))
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:3306: connection refused")
	err := internal(cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", MessageOf(err))
	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Nil(t, internal(nil))
}

func TestInternalKeepsExistingKind(t *testing.T) {
	err := internal(conflict(msgAccountExists))
	assert.ErrorIs(t, err, ErrConflict)
}
