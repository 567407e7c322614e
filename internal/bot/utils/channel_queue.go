package utils

import (
	"sync"

	"github.com/disgoorg/snowflake/v2"
)

// ChannelQueue runs jobs one at a time per channel in the order they were
// enqueued. Different channels run concurrently.
type ChannelQueue struct {
	mu      sync.Mutex
	pending map[snowflake.ID][]func()
	wg      sync.WaitGroup
}

// NewChannelQueue creates an empty ChannelQueue.
func NewChannelQueue() *ChannelQueue {
	return &ChannelQueue{
		pending: make(map[snowflake.ID][]func()),
	}
}

// Enqueue adds a job behind any job already queued for the channel.
func (q *ChannelQueue) Enqueue(channelID snowflake.ID, job func()) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs, running := q.pending[channelID]
	q.pending[channelID] = append(jobs, job)

	if !running {
		q.wg.Add(1)
		go q.drain(channelID)
	}
}

// Wait blocks until every queued job has run.
func (q *ChannelQueue) Wait() {
	q.wg.Wait()
}

// drain runs the channel's jobs until none are left.
func (q *ChannelQueue) drain(channelID snowflake.ID) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		jobs := q.pending[channelID]
		if len(jobs) == 0 {
			delete(q.pending, channelID)
			q.mu.Unlock()

			return
		}

		job := jobs[0]
		jobs[0] = nil
		q.pending[channelID] = jobs[1:]
		q.mu.Unlock()

		job()
	}
}
