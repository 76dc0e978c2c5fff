package backend

// SetConnected exposes the transition hook to external tests.
func SetConnected(c *Connectivity, connected bool) { c.set(connected) }
