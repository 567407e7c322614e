package ticket

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// channelLocks serialises operations on the same channel.
type channelLocks struct {
	mu    sync.Mutex
	locks map[snowflake.ID]*channelLock
}

type channelLock struct {
	mu   sync.Mutex
	refs int
}

func newChannelLocks() *channelLocks {
	return &channelLocks{locks: make(map[snowflake.ID]*channelLock)}
}

// Lock acquires the channel's lock and returns its release function.
func (l *channelLocks) Lock(channelID snowflake.ID) func() {
	l.mu.Lock()
	lock, ok := l.locks[channelID]
	if !ok {
		lock = &channelLock{}
		l.locks[channelID] = lock
	}
	lock.refs++
	l.mu.Unlock()

	lock.mu.Lock()

	return func() {
		lock.mu.Unlock()

		l.mu.Lock()
		lock.refs--
		if lock.refs == 0 {
			delete(l.locks, channelID)
		}
		l.mu.Unlock()
	}
}
