package api

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) add(d time.Duration) { c.t = c.t.Add(d) }

func TestIPLimiterEvictsIdle(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newIPLimiter(1, 2)
	l.now = clock.now
	l.lastSweep = clock.t

	for i := 0; i < 100; i++ {
		require.True(t, l.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	require.Equal(t, 100, l.size())

	require.True(t, l.allow("10.0.0.0"))
	require.False(t, l.allow("10.0.0.0"))

	// активный адрес остается, остальные удаляются
	clock.add(limiterIdle - time.Minute)
	l.allow("10.0.0.0")
	clock.add(time.Minute)
	require.True(t, l.allow("10.0.1.1"))
	require.Equal(t, 2, l.size())
}

func TestIPLimiterSharedBucketOverCap(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := newIPLimiter(1, 1)
	l.now = clock.now
	l.lastSweep = clock.t
	l.max = 3

	for i := 0; i < 3; i++ {
		require.True(t, l.allow(fmt.Sprintf("10.0.0.%d", i)))
	}
	// новые адреса делят один bucket, таблица не растет
	require.True(t, l.allow("10.0.0.3"))
	require.False(t, l.allow("10.0.0.4"))
	require.Equal(t, 3, l.size())

	// после простоя место освобождается
	clock.add(limiterIdle)
	require.True(t, l.allow("10.0.0.5"))
	require.Equal(t, 1, l.size())
}

func TestIPLimiterIdleCoversRefill(t *testing.T) {
	l := newIPLimiter(0.5, 1000)
	require.Equal(t, 2000*time.Second, l.idle)
	require.Equal(t, limiterIdle, newIPLimiter(1, 5).idle)
}
