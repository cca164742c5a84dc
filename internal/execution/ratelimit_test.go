package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAdmitsUpToLimit(t *testing.T) {
	l := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		d := l.Check("gmail_api")
		assert.True(t, d.Allowed)
		assert.Equal(t, 2-i, d.Remaining)
	}

	d := l.Check("gmail_api")
	assert.False(t, d.Allowed)
	assert.Greater(t, d.RetryAfter, time.Duration(0))
}

func TestRateLimiterBucketsAreIndependent(t *testing.T) {
	l := NewRateLimiter(1, time.Minute)

	assert.True(t, l.Check("gmail_api").Allowed)
	assert.False(t, l.Check("gmail_api").Allowed)
	assert.True(t, l.Check("github_api").Allowed)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(2, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Check("gmail_api").Allowed)
	assert.True(t, l.Check("gmail_api").Allowed)
	assert.False(t, l.Check("gmail_api").Allowed)

	// Once the first request ages out of the window a slot frees up.
	now = now.Add(61 * time.Second)
	d := l.Check("gmail_api")
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)
}

func TestRateLimiterRetryAfterTracksOldestRequest(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	l := NewRateLimiter(1, time.Minute)
	l.now = func() time.Time { return now }

	assert.True(t, l.Check("gmail_api").Allowed)

	now = now.Add(40 * time.Second)
	d := l.Check("gmail_api")
	assert.False(t, d.Allowed)
	assert.Equal(t, 20*time.Second, d.RetryAfter)
}

func TestRateLimiterDefaults(t *testing.T) {
	l := NewRateLimiter(0, 0)
	assert.Equal(t, DefaultMaxRequests, l.maxRequests)
	assert.Equal(t, DefaultWindowSeconds*time.Second, l.window)
}
