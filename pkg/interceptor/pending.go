//
//  Copyright © Manetu Inc. All rights reserved.
//

package interceptor

import "sync"

// pendingQueue holds the inbound messages of a call that have not been
// logged yet.  The inbound and outbound sides of a stream may use it
// concurrently.
type pendingQueue struct {
	mu    sync.Mutex
	items []interface{}
}

func (q *pendingQueue) pushLast(msg interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, msg)
}

func (q *pendingQueue) pollFirst() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	msg := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return msg, true
}

func (q *pendingQueue) pollLast() (interface{}, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if n == 0 {
		return nil, false
	}
	msg := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return msg, true
}

// drain removes and returns every queued message, oldest first
func (q *pendingQueue) drain() []interface{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *pendingQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
