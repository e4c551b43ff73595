package service

import "sync"

// keyedMutex provides an exclusive critical section per invoice id. While a
// ledger call for one invoice is outstanding, operations on that invoice
// block; operations on other invoices proceed unimpeded. Entries are
// reference-counted so the map does not grow with the invoice table.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[uint64]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[uint64]*lockEntry)}
}

// Lock acquires the exclusive section for an id and returns its release
// function.
func (k *keyedMutex) Lock(id uint64) func() {
	k.mu.Lock()
	entry, ok := k.entries[id]
	if !ok {
		entry = &lockEntry{}
		k.entries[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}
