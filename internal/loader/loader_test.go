package loader

import (
	"container/heap"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/brickvol/brickvol/internal/metadata"
)

// fakeSource is a minimal dataset.Source that counts fetches per brick
// so tests can assert at-most-one-concurrent-fetch-per-brick.
type fakeSource struct {
	brickBytes int
	calls      atomic.Int64
	delay      time.Duration
}

func (f *fakeSource) Metadata() *metadata.Metadata { return &metadata.Metadata{BS: 1, B: f.brickBytes} }

func (f *fakeSource) AllocateBrickBuffer() []byte { return make([]byte, f.brickBytes) }

func (f *fakeSource) RawBrick(i uint32, buf []byte) ([]byte, error) { return buf[:0], nil }

func (f *fakeSource) Brick(i uint32, buf []byte) error {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	for j := range buf {
		buf[j] = byte(i)
	}
	return nil
}

func drainWithin(l *Loader, want int, timeout time.Duration) []Completion {
	deadline := time.Now().Add(timeout)
	var out []Completion
	for time.Now().Before(deadline) {
		out = append(out, l.Drain()...)
		if len(out) >= want {
			return out
		}
		time.Sleep(time.Millisecond)
	}
	return out
}

func TestLoaderFetchesAndDrains(t *testing.T) {
	src := &fakeSource{brickBytes: 8}
	l := New(src, 16, 2)
	defer l.Close()

	l.Enqueue(5, 0)
	completions := drainWithin(l, 1, time.Second)
	if len(completions) != 1 {
		t.Fatalf("expected 1 completion, got %d", len(completions))
	}
	if completions[0].Brick != 5 || completions[0].Err != nil {
		t.Fatalf("unexpected completion: %+v", completions[0])
	}
	if completions[0].Data[0] != 5 {
		t.Fatalf("completion data not from brick 5: %v", completions[0].Data)
	}
}

func TestLoaderDedupsConcurrentRequests(t *testing.T) {
	src := &fakeSource{brickBytes: 4, delay: 50 * time.Millisecond}
	l := New(src, 16, 4)
	defer l.Close()

	// Enqueue the same brick many times before the first fetch can land;
	// the pending map dedups these into a single queue entry.
	for i := 0; i < 10; i++ {
		l.Enqueue(7, 0)
	}
	completions := drainWithin(l, 1, 2*time.Second)
	if len(completions) == 0 {
		t.Fatalf("expected at least one completion")
	}
	if got := src.calls.Load(); got != 1 {
		t.Fatalf("expected exactly 1 fetch call, got %d", got)
	}
}

func TestLoaderBackpressureReplacesLowestPriority(t *testing.T) {
	src := &fakeSource{brickBytes: 4, delay: 100 * time.Millisecond}
	l := New(src, 1, 1)
	defer l.Close()

	// First request occupies the sole worker; fill the 1-slot queue with
	// a low-priority item, then a higher-priority one should evict it.
	l.Enqueue(0, 0)
	time.Sleep(10 * time.Millisecond) // let the worker pick up brick 0
	l.Enqueue(1, 0)                   // occupies the queue's single slot
	l.Enqueue(2, 5)                   // coarser LOD, should replace brick 1

	l.mu.Lock()
	_, stillQueued1 := l.pending[1]
	_, stillQueued2 := l.pending[2]
	l.mu.Unlock()
	if stillQueued1 {
		t.Fatalf("brick 1 should have been evicted from the queue")
	}
	if !stillQueued2 {
		t.Fatalf("brick 2 should be queued")
	}
}

func TestLoaderCancelDropsCompletion(t *testing.T) {
	src := &fakeSource{brickBytes: 4, delay: 50 * time.Millisecond}
	l := New(src, 16, 1)
	defer l.Close()

	l.Enqueue(3, 0)
	time.Sleep(5 * time.Millisecond) // worker picks it up, now in flight
	l.Cancel(3)

	time.Sleep(100 * time.Millisecond)
	completions := l.Drain()
	for _, c := range completions {
		if c.Brick == 3 {
			t.Fatalf("cancelled brick 3 must not produce a completion")
		}
	}
}

func TestLoaderPurgeCancelsEverything(t *testing.T) {
	src := &fakeSource{brickBytes: 4, delay: 50 * time.Millisecond}
	l := New(src, 16, 1)
	defer l.Close()

	for i := uint32(0); i < 5; i++ {
		l.Enqueue(i, 0)
	}
	l.Purge()

	l.mu.Lock()
	remaining := len(l.pending)
	l.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("expected purge to clear the pending queue, got %d remaining", remaining)
	}
}

func TestPriorityQueueOrdersCoarserFirst(t *testing.T) {
	q := &priorityQueue{}
	heap.Init(q)
	for lvl := 0; lvl < 4; lvl++ {
		heap.Push(q, &qItem{brick: uint32(lvl), priority: int32(lvl), generation: uint64(lvl)})
	}
	var order []uint32
	for q.Len() > 0 {
		item := heap.Pop(q).(*qItem)
		order = append(order, item.brick)
	}
	for i := 1; i < len(order); i++ {
		if order[i] > order[i-1] {
			t.Fatalf("expected descending priority order, got %v", order)
		}
	}
}

func ExampleLoader_Enqueue() {
	src := &fakeSource{brickBytes: 1}
	l := New(src, 4, 1)
	defer l.Close()
	l.Enqueue(0, 0)
	var done []Completion
	for len(done) == 0 {
		done = l.Drain()
	}
	fmt.Println(done[0].Brick)
	// Output: 0
}
