// The MIT License (MIT)
//
// # Copyright (c) 2016 xtaci
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package loader is the background fetch pool (C9): a bounded worker
// pool draining a priority queue of brick requests into the atlas
// manager without blocking the render thread.
package loader

import (
	"container/heap"
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/dataset"
	"github.com/vburenin/nsync"
)

// Completion is one finished (or failed) fetch, handed to the atlas
// manager via Drain.
type Completion struct {
	Brick uint32
	Data  []byte
	Err   error
}

type fetchResult struct {
	data []byte
	err  error
}

// Loader runs N worker goroutines pulling from a bounded priority
// queue. At-most-one-concurrent-fetch-per-brick is enforced with
// nsync.NamedOnceMutex, the same primitive godal's internal/blockcache
// uses to guarantee concurrent requests for one key collapse to a
// single call to the underlying reader.
type Loader struct {
	src      dataset.Source
	capacity int

	mu       sync.Mutex
	queue    priorityQueue
	pending  map[uint32]*qItem
	inFlight map[uint32]context.CancelFunc
	notify   chan struct{}

	fetchMu nsync.NamedOnceMutex
	results sync.Map // brick uint32 -> fetchResult

	completions chan Completion
	generation  atomic.Uint64

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New starts a Loader with workers goroutines (runtime.GOMAXPROCS(0) if
// workers <= 0) reading from src, backed by a queue bounded at capacity.
func New(src dataset.Source, capacity, workers int) *Loader {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if capacity <= 0 {
		capacity = 256
	}
	l := &Loader{
		src:         src,
		capacity:    capacity,
		pending:     make(map[uint32]*qItem),
		inFlight:    make(map[uint32]context.CancelFunc),
		notify:      make(chan struct{}, workers),
		fetchMu:     nsync.NewNamedOnceMutex(),
		completions: make(chan Completion, capacity+workers),
		stopCh:      make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go l.run()
	}
	return l
}

// Enqueue requests brick for background fetch at a priority derived
// from its LOD level (coarser levels pop first, per the admission
// policy's "priority = coarser LOD first"). Re-enqueuing a brick
// already queued or in flight only raises its priority if higher.
func (l *Loader) Enqueue(brick uint32, level int) {
	priority := int32(level)
	gen := l.generation.Add(1)

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, inFlight := l.inFlight[brick]; inFlight {
		return
	}
	if item, ok := l.pending[brick]; ok {
		if priority > item.priority {
			item.priority = priority
			item.generation = gen
			heap.Fix(&l.queue, item.heapIndex)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	item := &qItem{brick: brick, priority: priority, generation: gen, ctx: ctx, cancel: cancel}

	if len(l.queue) >= l.capacity {
		widx := l.queue.worstIndex()
		worst := l.queue[widx]
		if priority <= worst.priority {
			cancel()
			return
		}
		heap.Remove(&l.queue, widx)
		worst.cancel()
		delete(l.pending, worst.brick)
	}

	heap.Push(&l.queue, item)
	l.pending[brick] = item
	l.signal()
}

// Cancel discards brick's pending or in-flight fetch, used on eviction
// or purge so a stale result never reaches Drain.
func (l *Loader) Cancel(brick uint32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if item, ok := l.pending[brick]; ok {
		heap.Remove(&l.queue, item.heapIndex)
		delete(l.pending, brick)
		item.cancel()
	}
	if cancel, ok := l.inFlight[brick]; ok {
		cancel()
	}
}

// Purge cancels every pending and in-flight fetch.
func (l *Loader) Purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.pending {
		item.cancel()
	}
	l.queue = l.queue[:0]
	l.pending = make(map[uint32]*qItem)
	for _, cancel := range l.inFlight {
		cancel()
	}
}

// Close stops every worker goroutine. Pending and in-flight fetches are
// not awaited; call Purge first if their results must not land after Close.
func (l *Loader) Close() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Drain returns every completion ready so far without blocking. A
// frame may see some newly admitted bricks while others are still
// loading.
func (l *Loader) Drain() []Completion {
	var out []Completion
	for {
		select {
		case c := <-l.completions:
			out = append(out, c)
		default:
			return out
		}
	}
}

func (l *Loader) signal() {
	select {
	case l.notify <- struct{}{}:
	default:
	}
}

func (l *Loader) run() {
	for {
		item := l.next()
		if item == nil {
			select {
			case <-l.notify:
				continue
			case <-l.stopCh:
				return
			}
		}
		l.process(item)
	}
}

func (l *Loader) next() *qItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	item := heap.Pop(&l.queue).(*qItem)
	delete(l.pending, item.brick)
	l.inFlight[item.brick] = item.cancel
	return item
}

func (l *Loader) process(item *qItem) {
	defer func() {
		l.mu.Lock()
		delete(l.inFlight, item.brick)
		l.mu.Unlock()
	}()

	var data []byte
	var err error
	if l.fetchMu.Lock(item.brick) {
		data, err = l.fetch(item.ctx, item.brick)
		l.results.Store(item.brick, fetchResult{data: data, err: err})
		l.fetchMu.Unlock(item.brick)
	} else if v, ok := l.results.Load(item.brick); ok {
		r := v.(fetchResult)
		data, err = r.data, r.err
	} else {
		err = bvlerr.Wrap(bvlerr.Resource, "loader.process", errResultUnavailable)
	}

	if item.ctx.Err() != nil {
		return
	}
	select {
	case l.completions <- Completion{Brick: item.brick, Data: data, Err: err}:
	default:
	}
}

func (l *Loader) fetch(ctx context.Context, brick uint32) ([]byte, error) {
	buf := l.src.AllocateBrickBuffer()
	if err := l.src.Brick(brick, buf); err != nil {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return buf, nil
}
