package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Counters(t *testing.T) {
	r := NewRegistry()
	labels := map[string]string{"transport": "live", "result": "ok"}

	r.IncrementCounter(SendAttempts, labels, "sends")
	r.AddToCounter(SendAttempts, 2, map[string]string{"result": "ok", "transport": "live"}, "sends")
	r.IncrementCounter(SendAttempts, nil, "sends")

	assert.Equal(t, 3.0, r.CounterValue(SendAttempts, labels))
	assert.Equal(t, 1.0, r.CounterValue(SendAttempts, nil))
	assert.Equal(t, 0.0, r.CounterValue("unknown", nil))

	snap := r.Snapshot()
	require.Contains(t, snap.Counters, "composer_send_attempts_total{result=ok,transport=live}")
	assert.Equal(t, Counter, snap.Counters["composer_send_attempts_total{result=ok,transport=live}"].Type)
}

func TestRegistry_Gauges(t *testing.T) {
	r := NewRegistry()

	_, ok := r.GaugeValue(StaleMessages, nil)
	assert.False(t, ok)

	r.SetGauge(StaleMessages, 4, nil, "stale")
	r.SetGauge(StaleMessages, 2, nil, "stale")

	v, ok := r.GaugeValue(StaleMessages, nil)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
}

func TestRegistry_Timers(t *testing.T) {
	r := NewRegistry()
	for i := 1; i <= 20; i++ {
		r.RecordTimer(SendLatency, time.Duration(i)*time.Millisecond, nil, "latency")
	}

	timer := r.Snapshot().Timers[SendLatency]
	assert.Equal(t, int64(20), timer.Count)
	assert.Equal(t, 1.0, timer.Min)
	assert.Equal(t, 20.0, timer.Max)
	assert.InDelta(t, 10.5, timer.Average, 0.001)
	assert.Equal(t, 20.0, timer.P95)
	assert.Equal(t, 20.0, timer.P99)
}

func TestRegistry_Reset(t *testing.T) {
	r := NewRegistry()
	r.IncrementCounter(HTTPRequests, nil, "")
	r.Reset()
	assert.Empty(t, r.Snapshot().Counters)
}

func TestRegistry_Concurrent(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.IncrementCounter(HTTPRequests, map[string]string{"method": "GET"}, "")
			r.RecordTimer(HTTPRequestDuration, time.Millisecond, nil, "")
			_ = r.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50.0, r.CounterValue(HTTPRequests, map[string]string{"method": "GET"}))
}

func TestGlobalRegistry(t *testing.T) {
	GetRegistry().Reset()
	IncrementCounter(LoginAttempts, nil, "")
	AddToCounter(LoginAttempts, 1, nil, "")
	SetGauge(LiveConnections, 3, nil, "")
	RecordTimer(HTTPRequestDuration, time.Millisecond, nil, "")

	assert.Equal(t, 2.0, GetRegistry().CounterValue(LoginAttempts, nil))
	v, _ := GetRegistry().GaugeValue(LiveConnections, nil)
	assert.Equal(t, 3.0, v)
}
