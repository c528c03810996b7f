package analytics

import "time"

func (g *IPWhoLocator) SetClock(now func() time.Time) {
	g.now = now
}

func (g *IPWhoLocator) CachedAddresses() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.cache)
}
