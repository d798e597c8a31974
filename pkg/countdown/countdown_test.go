package countdown

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemaining_ClampsAtZero(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 2*time.Minute, Remaining(now, now.Add(2*time.Minute)))
	assert.Equal(t, time.Duration(0), Remaining(now, now))
	assert.Equal(t, time.Duration(0), Remaining(now, now.Add(-time.Second)))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "02:00", FormatClock(2*time.Minute))
	assert.Equal(t, "00:30", FormatClock(30*time.Second))
	assert.Equal(t, "00:00", FormatClock(0))
	assert.Equal(t, "00:00", FormatClock(-time.Second))
	// Partial seconds round up, so the clock never shows 00:00 early
	assert.Equal(t, "00:01", FormatClock(200*time.Millisecond))
	assert.Equal(t, "01:01", FormatClock(61*time.Second))
}

func TestEngine_CountsDownToZeroAndCloses(t *testing.T) {
	e := NewEngine(WithInterval(5 * time.Millisecond))
	ch := e.Start(time.Now().Add(30 * time.Millisecond))

	var values []time.Duration
	for remaining := range ch {
		values = append(values, remaining)
	}

	require.NotEmpty(t, values)
	// Never negative, final value is exactly zero
	for _, v := range values {
		assert.GreaterOrEqual(t, v, time.Duration(0))
	}
	assert.Equal(t, time.Duration(0), values[len(values)-1])
}

func TestEngine_StopClosesChannel(t *testing.T) {
	e := NewEngine(WithInterval(5 * time.Millisecond))
	ch := e.Start(time.Now().Add(time.Hour))

	// Drain the immediate first value, then stop
	<-ch
	e.Stop()

	select {
	case _, ok := <-ch:
		if ok {
			// A tick may have been buffered before Stop; the next read must
			// observe the closed channel.
			_, ok = <-ch
			assert.False(t, ok)
		}
	case <-time.After(time.Second):
		t.Fatal("channel was not closed after Stop")
	}
}

func TestEngine_RestartTearsDownPreviousRun(t *testing.T) {
	e := NewEngine(WithInterval(5 * time.Millisecond))
	first := e.Start(time.Now().Add(time.Hour))
	<-first

	second := e.Start(time.Now().Add(20 * time.Millisecond))
	defer e.Stop()

	// The first channel is closed by the restart
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-first:
			if !ok {
				goto drained
			}
		case <-deadline:
			t.Fatal("first channel was not closed after restart")
		}
	}
drained:

	var last time.Duration = -1
	for remaining := range second {
		last = remaining
	}
	assert.Equal(t, time.Duration(0), last)
}
