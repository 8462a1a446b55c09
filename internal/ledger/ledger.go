// Package ledger serializes mutations of each pump's running stock level.
// Two concurrent sales against one pump race on the check-then-decrement;
// holding the pump's lock across the whole lifecycle step closes that
// window in-process without any storage-level coordination.
package ledger

import (
	"context"
	"sync"

	"github.com/dara-tech/gasmanagement-sub000/internal/pricing"
	"github.com/dara-tech/gasmanagement-sub000/internal/store"
)

type Ledger struct {
	repo  store.Repository
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(repo store.Repository) *Ledger {
	return &Ledger{repo: repo, locks: make(map[string]*sync.Mutex)}
}

func (l *Ledger) lockFor(pumpID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[pumpID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[pumpID] = lock
	}
	return lock
}

// Serialize runs fn while holding the pump's mutation lock. All stock
// mutations must go through Serialize (or SerializePair); Increase and
// Decrease do not lock on their own.
func (l *Ledger) Serialize(pumpID string, fn func() error) error {
	lock := l.lockFor(pumpID)
	lock.Lock()
	defer lock.Unlock()
	return fn()
}

// SerializePair locks two pumps in a stable order so reversal-and-reapply
// operations that touch both cannot deadlock against each other.
func (l *Ledger) SerializePair(pumpA string, pumpB string, fn func() error) error {
	if pumpA == pumpB {
		return l.Serialize(pumpA, fn)
	}
	first, second := pumpA, pumpB
	if second < first {
		first, second = second, first
	}
	firstLock := l.lockFor(first)
	secondLock := l.lockFor(second)
	firstLock.Lock()
	defer firstLock.Unlock()
	secondLock.Lock()
	defer secondLock.Unlock()
	return fn()
}

// Increase adds liters to the pump's stock and returns the new level.
func (l *Ledger) Increase(ctx context.Context, pumpID string, liters float64) (float64, error) {
	return l.repo.AdjustPumpStock(ctx, pumpID, pricing.Round2(liters))
}

// Decrease removes liters from the pump's stock, clamped at zero. The clamp
// tolerates float drift from repeated edits; sale paths must pre-validate
// availability before decreasing.
func (l *Ledger) Decrease(ctx context.Context, pumpID string, liters float64) (float64, error) {
	return l.repo.AdjustPumpStock(ctx, pumpID, -pricing.Round2(liters))
}

// Available reports whether the pump currently holds at least liters.
func (l *Ledger) Available(ctx context.Context, pumpID string, liters float64) (bool, error) {
	pump, err := l.repo.GetPump(ctx, pumpID)
	if err != nil {
		return false, err
	}
	return liters <= pump.StockLiters, nil
}
