package engine

import "sync"

// companyLocks serializes position processing per company. Two concurrent
// imports for the same company would otherwise race on holding updates.
type companyLocks struct {
	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func newCompanyLocks() *companyLocks {
	return &companyLocks{locks: make(map[int64]*sync.Mutex)}
}

func (c *companyLocks) get(companyID int64) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[companyID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[companyID] = l
	}
	return l
}
