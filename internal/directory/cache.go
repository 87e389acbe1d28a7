package directory

import (
	"context"
	"sync"

	"github.com/dennisdiepolder/monti/wrapupbridge/internal/types"
)

// Cache holds the code lists pushed by the desktop platform
type Cache struct {
	mu          sync.RWMutex
	idleCodes   []types.IdleCode
	wrapupCodes []types.WrapupCode

	// idleReady is closed the first time a non-empty idle code list arrives
	idleReady chan struct{}
	readyOnce sync.Once
}

// NewCache creates an empty code cache
func NewCache() *Cache {
	return &Cache{
		idleReady: make(chan struct{}),
	}
}

// SetIdleCodes replaces the idle code list. A non-empty list releases every
// pending and future WaitIdleCodes call.
func (c *Cache) SetIdleCodes(codes []types.IdleCode) {
	c.mu.Lock()
	c.idleCodes = append([]types.IdleCode(nil), codes...)
	c.mu.Unlock()

	if len(codes) > 0 {
		c.readyOnce.Do(func() { close(c.idleReady) })
	}
}

// SetWrapupCodes replaces the wrap-up code list
func (c *Cache) SetWrapupCodes(codes []types.WrapupCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wrapupCodes = append([]types.WrapupCode(nil), codes...)
}

// IdleCodes returns a copy of the current idle code list
func (c *Cache) IdleCodes() []types.IdleCode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.IdleCode(nil), c.idleCodes...)
}

// WrapupCodes returns a copy of the current wrap-up code list
func (c *Cache) WrapupCodes() []types.WrapupCode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]types.WrapupCode(nil), c.wrapupCodes...)
}

// LookupWrapupCode finds a wrap-up code by id in the current list
func (c *Cache) LookupWrapupCode(id types.WrapupCodeID) (types.WrapupCode, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, code := range c.wrapupCodes {
		if code.ID.String() == string(id) {
			return code, true
		}
	}
	return types.WrapupCode{}, false
}

// WaitIdleCodes returns the idle code list as soon as it is non-empty.
// It returns immediately when the list is already available, otherwise it
// waits for the first non-empty update or for ctx to be done.
func (c *Cache) WaitIdleCodes(ctx context.Context) ([]types.IdleCode, error) {
	select {
	case <-c.idleReady:
		return c.IdleCodes(), nil
	default:
	}

	select {
	case <-c.idleReady:
		return c.IdleCodes(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// DefaultAuxCode picks the first idle code flagged as default.
// It returns NoDefaultAuxCode when the list is empty or nothing is flagged.
func DefaultAuxCode(codes []types.IdleCode) types.AuxCode {
	for _, code := range codes {
		if code.IsDefault {
			return types.AuxCode(code.ID.String())
		}
	}
	return types.NoDefaultAuxCode
}
