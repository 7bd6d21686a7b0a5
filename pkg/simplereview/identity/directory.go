package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/tendant/simple-review/pkg/simplereview"
)

// StaticDirectory is an in-memory account directory. Removing an account
// makes its outstanding tokens fail with STALE_SESSION.
type StaticDirectory struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]struct{}
}

var _ simplereview.AccountDirectory = (*StaticDirectory)(nil)

func NewStaticDirectory(ids ...uuid.UUID) *StaticDirectory {
	d := &StaticDirectory{accounts: make(map[uuid.UUID]struct{}, len(ids))}
	for _, id := range ids {
		d.accounts[id] = struct{}{}
	}
	return d
}

func (d *StaticDirectory) Add(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[id] = struct{}{}
}

func (d *StaticDirectory) Remove(id uuid.UUID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.accounts, id)
}

func (d *StaticDirectory) AccountExists(ctx context.Context, userID uuid.UUID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.accounts[userID]
	return ok, nil
}
