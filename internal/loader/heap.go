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

package loader

import "context"

// qItem is one pending fetch request. priority is derived from LOD
// (coarser levels get a higher value so they pop first); generation
// breaks ties in favor of the older request.
type qItem struct {
	brick      uint32
	priority   int32
	generation uint64
	ctx        context.Context
	cancel     context.CancelFunc
	heapIndex  int
}

// priorityQueue is a container/heap over qItems, root = next to process.
type priorityQueue []*qItem

func (q priorityQueue) Len() int { return len(q) }

func (q priorityQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].generation < q[j].generation
}

func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].heapIndex = i
	q[j].heapIndex = j
}

func (q *priorityQueue) Push(x interface{}) {
	item := x.(*qItem)
	item.heapIndex = len(*q)
	*q = append(*q, item)
}

func (q *priorityQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.heapIndex = -1
	*q = old[:n-1]
	return item
}

// worstIndex finds the least urgent item, used to implement backpressure
// ("new requests past capacity replace the lowest-priority pending item").
func (q priorityQueue) worstIndex() int {
	worst := 0
	for i := 1; i < len(q); i++ {
		if q[i].priority < q[worst].priority ||
			(q[i].priority == q[worst].priority && q[i].generation > q[worst].generation) {
			worst = i
		}
	}
	return worst
}
