package validators

import (
	"sync"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type entityKey struct {
	account  common.Address
	entityId types.EntityId
}

type entityLock struct {
	mu      sync.Mutex
	holders int
}

// EntityLocks hands out one exclusive lock per (account, entity). Locks are dropped once no
// goroutine holds or waits on them.
type EntityLocks struct {
	mu    sync.Mutex
	locks map[entityKey]*entityLock
}

func NewEntityLocks() *EntityLocks {
	return &EntityLocks{locks: make(map[entityKey]*entityLock)}
}

// Lock blocks until the caller owns (account, entityId) and returns the release func.
func (l *EntityLocks) Lock(account common.Address, entityId types.EntityId) func() {
	key := entityKey{account: account, entityId: entityId}

	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &entityLock{}
		l.locks[key] = lock
	}
	lock.holders++
	l.mu.Unlock()

	lock.mu.Lock()
	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.holders--
		if lock.holders == 0 {
			delete(l.locks, key)
		}
		l.mu.Unlock()
	}
}

func (l *EntityLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
