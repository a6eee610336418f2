// Package portclaim tracks which device owns which serial port path.
//
// Serial and mesh drivers probe numbered device files; a path already
// claimed by another configured device is skipped. One Table is created by
// the host and shared by every driver that probes ports.
package portclaim

import "sync"

// Table maps port paths to the name of the device that opened them.
// All methods are safe for concurrent use.
type Table struct {
	mu     sync.Mutex
	owners map[string]string
}

// New creates an empty claim table.
func New() *Table {
	return &Table{owners: make(map[string]string)}
}

// Claim records owner as the holder of path. It returns false if another
// owner already holds it; re-claiming a path you hold succeeds.
func (t *Table) Claim(path, owner string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cur, ok := t.owners[path]; ok && cur != owner {
		return false
	}
	t.owners[path] = owner
	return true
}

// Release frees path if owner holds it.
func (t *Table) Release(path, owner string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.owners[path] == owner {
		delete(t.owners, path)
	}
}

// Owner returns the device holding path, or "" if it is free.
func (t *Table) Owner(path string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.owners[path]
}

// ClaimedByOther reports whether path is held by someone other than owner.
func (t *Table) ClaimedByOther(path, owner string) bool {
	cur := t.Owner(path)
	return cur != "" && cur != owner
}
