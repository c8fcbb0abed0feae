package security

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_FirstRequestSetsWindow(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRateLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:purchase:user:u1").SetVal(1)
	mock.ExpectExpire("ratelimit:purchase:user:u1", time.Minute).SetVal(true)

	allowed, err := r.Allow(context.Background(), "purchase", "user:u1")
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RejectsOverLimit(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRateLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:purchase:user:u1").SetVal(2)
	mock.ExpectIncr("ratelimit:purchase:user:u1").SetVal(3)

	allowed, err := r.Allow(context.Background(), "purchase", "user:u1")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = r.Allow(context.Background(), "purchase", "user:u1")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRateLimiter_RedisError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	r := NewRateLimiter(db, 2, time.Minute)

	mock.ExpectIncr("ratelimit:purchase:1.2.3.4").SetErr(errors.New("connection refused"))

	allowed, err := r.Allow(context.Background(), "purchase", "1.2.3.4")
	assert.Error(t, err)
	assert.False(t, allowed)
}

func TestIsSuspiciousUserAgent(t *testing.T) {
	assert.True(t, isSuspiciousUserAgent("Googlebot/2.1"))
	assert.True(t, isSuspiciousUserAgent("My-Scraper 1.0"))
	assert.False(t, isSuspiciousUserAgent("Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)"))
	assert.False(t, isSuspiciousUserAgent(""))
}
