// Copyright 2025 Alibaba Group Holding Ltd.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package activity holds the human-readable event feed shared by the upload
// and browse services.
package activity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/lanvault/lanvault/pkg/metrics"
)

const timeLayout = "15:04:05"

// Event is one line of the activity feed.
type Event struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// String renders the event as "[HH:MM:SS] message".
func (e Event) String() string {
	return "[" + e.Time.Format(timeLayout) + "] " + e.Message
}

// Recorder accepts activity messages from request handlers.
type Recorder interface {
	Record(message string)
}

// Recordf formats a message and records it. A nil Recorder is ignored.
func Recordf(r Recorder, format string, args ...any) {
	if r == nil {
		return
	}
	r.Record(fmt.Sprintf(format, args...))
}

// Log is an unbounded multi-producer FIFO drained by a single consumer.
// Subscribers get best-effort copies of every pushed event.
type Log struct {
	mu          sync.Mutex
	queue       []Event
	subscribers map[chan Event]struct{}
	now         func() time.Time
}

// New returns an empty Log.
func New() *Log {
	return &Log{
		subscribers: make(map[chan Event]struct{}),
		now:         time.Now,
	}
}

// Record stamps message with the current time and pushes it.
func (l *Log) Record(message string) {
	l.Push(Event{Time: l.now(), Message: message})
}

// Push appends e to the queue and fans it out to subscribers. Never blocks.
func (l *Log) Push(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.queue = append(l.queue, e)
	for ch := range l.subscribers {
		select {
		case ch <- e:
		default:
			// slow subscriber, drop
		}
	}
	metrics.RecordActivityEvent()
}

// Drain removes and returns every queued event in push order.
func (l *Log) Drain() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		return nil
	}
	events := l.queue
	l.queue = nil
	return events
}

// Len returns the number of queued events.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Subscribe registers a listener with the given buffer. The returned cancel
// func unregisters it and closes the channel.
func (l *Log) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)

	l.mu.Lock()
	l.subscribers[ch] = struct{}{}
	count := len(l.subscribers)
	l.mu.Unlock()
	metrics.SetActivitySubscribers(count)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subscribers, ch)
			close(ch)
			count := len(l.subscribers)
			l.mu.Unlock()
			metrics.SetActivitySubscribers(count)
		})
	}
}

// Consume drains the queue every interval and hands each event to fn until
// ctx is done. Events still queued at that point are delivered before return.
func (l *Log) Consume(ctx context.Context, interval time.Duration, fn func(Event)) {
	drain := func(context.Context) {
		for _, e := range l.Drain() {
			fn(e)
		}
	}
	wait.UntilWithContext(ctx, drain, interval)
	drain(context.Background())
}
