package bridge

import "sync"

// entry is one outstanding dialog request. cancel is the value used to
// resolve it when the owning surface is torn down (false for confirm,
// nil for prompt) so the waiting caller never hangs.
type entry struct {
	owner   string
	cancel  interface{}
	resolve func(result interface{})
}

// Pending tracks outstanding confirm/prompt requests by the
// host-assigned relay id. A response is honored only when its id
// matches an unresolved entry; stray and duplicate responses are
// ignored.
type Pending struct {
	mu      sync.Mutex
	entries map[string]entry
}

// NewPending creates an empty pending-request map.
func NewPending() *Pending {
	return &Pending{entries: make(map[string]entry)}
}

// Register stores a resolver under a relay id. Relay ids are generated
// per request so a duplicate means a generator fault; the first request
// keeps the slot until resolved.
func (p *Pending) Register(id, owner string, cancel interface{}, resolve func(result interface{})) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.entries[id]; exists {
		return false
	}
	p.entries[id] = entry{owner: owner, cancel: cancel, resolve: resolve}
	return true
}

// Resolve removes and fires the entry for id. Unknown ids report false
// without side effects.
func (p *Pending) Resolve(id string, result interface{}) bool {
	p.mu.Lock()
	e, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()

	if !ok {
		return false
	}
	e.resolve(result)
	return true
}

// DrainOwner resolves every entry registered by one surface with its
// cancellation value. Called when that surface disconnects.
func (p *Pending) DrainOwner(owner string) int {
	p.mu.Lock()
	drained := make([]entry, 0)
	for id, e := range p.entries {
		if e.owner == owner {
			drained = append(drained, e)
			delete(p.entries, id)
		}
	}
	p.mu.Unlock()

	for _, e := range drained {
		e.resolve(e.cancel)
	}
	return len(drained)
}

// DrainAll resolves every outstanding entry with its cancellation value.
// Called when the last host UI surface goes away.
func (p *Pending) DrainAll() int {
	p.mu.Lock()
	drained := make([]entry, 0, len(p.entries))
	for id, e := range p.entries {
		drained = append(drained, e)
		delete(p.entries, id)
	}
	p.mu.Unlock()

	for _, e := range drained {
		e.resolve(e.cancel)
	}
	return len(drained)
}

// Len reports the number of outstanding requests.
func (p *Pending) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.entries)
}
