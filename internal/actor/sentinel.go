package actor

import "time"

// sentinelInterval is how often the background sentinel polls the
// registry for the deadlock condition.
const sentinelInterval = 2 * time.Millisecond

// runSentinel polls reg until it observes a deadlock (triggering it and
// returning) or stop is closed (the program finished normally).
func runSentinel(reg *Registry, stop <-chan struct{}) {
	ticker := time.NewTicker(sentinelInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if reg.checkDeadlock() {
				reg.TriggerDeadlock()
				return
			}
		}
	}
}
