/*
Package resilience shields outbound dependencies behind a circuit breaker.

The daemon's only steady outbound traffic is webhook notification
delivery. An endpoint that starts timing out would otherwise soak up a
retry budget on every playback event; the breaker cuts that short after
a run of failures and probes for recovery on its own schedule.

# Usage

	breaker := resilience.New("webhook", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c resilience.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	})

	err := breaker.Do(func() error {
		return client.Post(payload)
	})

Do returns ErrCircuitOpen without invoking the call while the breaker
cools down, and ErrTooManyRequests when the half-open probe quota is
already in flight. Callers treat both as "drop and move on"; delivery
of notifications is best effort.

# Lifecycle

Closed counts outcomes over a rolling interval and trips via
ReadyToTrip. Open rejects everything until Timeout elapses. Half-open
admits MaxRequests probes: that many consecutive successes close the
breaker, any failure re-opens it.
*/
package resilience
