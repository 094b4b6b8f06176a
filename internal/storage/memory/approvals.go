// Package memory is the in-process approval store used when no database is configured.
package memory

import (
	"context"
	"sync"

	"flex_reviews/internal/domain"
)

var _ domain.ApprovalStore = (*Approvals)(nil)

type Approvals struct {
	mu       sync.RWMutex
	approved map[domain.ReviewKey]struct{}
}

func NewApprovals() *Approvals {
	return &Approvals{approved: make(map[domain.ReviewKey]struct{})}
}

func (a *Approvals) SetApproved(_ context.Context, ch domain.ApprovalChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, k := range ch.Keys {
		if ch.Approved {
			a.approved[k] = struct{}{}
		} else {
			delete(a.approved, k)
		}
	}
	return nil
}

func (a *Approvals) Approved(_ context.Context, keys []domain.ReviewKey) (map[domain.ReviewKey]bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[domain.ReviewKey]bool, len(keys))
	for _, k := range keys {
		if _, ok := a.approved[k]; ok {
			out[k] = true
		}
	}
	return out, nil
}
