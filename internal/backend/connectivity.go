package backend

import "sync"

// Connectivity tracks whether the backend was reachable on the last request.
// Subscribers hear about transitions only, never repeats of the current state.
type Connectivity struct {
	mu        sync.Mutex
	connected bool
	nextID    int
	subs      map[int]func(bool)
}

// NewConnectivity starts in the connected state.
func NewConnectivity() *Connectivity {
	return &Connectivity{connected: true, subs: map[int]func(bool){}}
}

// Connected reports the current state.
func (c *Connectivity) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe registers fn for state changes (true = online).
// The returned func removes the subscription.
func (c *Connectivity) Subscribe(fn func(connected bool)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *Connectivity) set(connected bool) {
	c.mu.Lock()
	if c.connected == connected {
		c.mu.Unlock()
		return
	}
	c.connected = connected
	fns := make([]func(bool), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	// Called outside the lock so a subscriber may query Connected.
	for _, fn := range fns {
		fn(connected)
	}
}
