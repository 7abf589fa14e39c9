package rclient

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/brickvol/brickvol/internal/bvlerr"
	"github.com/brickvol/brickvol/internal/wire"
)

// coalescer batches outstanding RawBrick calls into GETBRICKS roundtrips,
// up to maxBricksPerGetRequest per request, linger-windowed the way the
// teacher's client/main.go scavenger goroutine batches expiring sessions
// off a channel+ticker rather than acting on each one individually.
type coalescer struct {
	client   *Client
	ds       *Dataset
	deadline time.Duration
	reqCh    chan fetchReq
}

type fetchReq struct {
	index    uint32
	resultCh chan fetchResult
}

type fetchResult struct {
	data []byte
	err  error
}

func newCoalescer(c *Client, ds *Dataset, deadline time.Duration) *coalescer {
	if deadline <= 0 {
		deadline = 5 * time.Second
	}
	co := &coalescer{client: c, ds: ds, deadline: deadline, reqCh: make(chan fetchReq, 256)}
	go co.run()
	return co
}

func (co *coalescer) fetch(index uint32) ([]byte, error) {
	resultCh := make(chan fetchResult, 1)
	co.reqCh <- fetchReq{index: index, resultCh: resultCh}
	res := <-resultCh
	return res.data, res.err
}

func (co *coalescer) run() {
	for first := range co.reqCh {
		batch := []fetchReq{first}
		timer := time.NewTimer(co.client.lingerWindow)
	collect:
		for len(batch) < co.client.maxBricksPerGetRequest {
			select {
			case req, ok := <-co.reqCh:
				if !ok {
					break collect
				}
				batch = append(batch, req)
			case <-timer.C:
				break collect
			}
		}
		timer.Stop()
		co.dispatch(batch)
	}
}

func (co *coalescer) dispatch(batch []fetchReq) {
	indices := make([]uint32, len(batch))
	for i, r := range batch {
		indices[i] = r.index
	}
	results, err := co.fetchWithRetry(indices, co.deadline)
	for i, r := range batch {
		if err != nil {
			r.resultCh <- fetchResult{err: err}
			continue
		}
		r.resultCh <- fetchResult{data: results[i]}
	}
}

// fetchWithRetry implements §5's "on timeout, retry with a smaller batch
// (halving) up to a bounded number of retries": on a transport timeout
// for a batch of more than one brick, split in half and retry each half
// independently before giving up.
func (co *coalescer) fetchWithRetry(indices []uint32, deadline time.Duration) ([][]byte, error) {
	results, err := co.getBricks(indices, deadline)
	if err == nil {
		return results, nil
	}
	if !bvlerr.Is(err, bvlerr.Transport) || len(indices) <= 1 {
		return nil, err
	}

	mid := len(indices) / 2
	left, lerr := co.fetchWithRetry(indices[:mid], deadline)
	if lerr != nil {
		return nil, lerr
	}
	right, rerr := co.fetchWithRetry(indices[mid:], deadline)
	if rerr != nil {
		return nil, rerr
	}
	return append(left, right...), nil
}

func (co *coalescer) getBricks(indices []uint32, deadline time.Duration) ([][]byte, error) {
	if err := co.client.conn.SetDeadline(time.Now().Add(deadline)); err != nil {
		return nil, bvlerr.Wrap(bvlerr.Transport, "rclient.getBricks", err)
	}
	defer co.client.conn.SetDeadline(time.Time{})

	toks := make([]string, len(indices))
	for i, idx := range indices {
		toks[i] = strconv.FormatUint(uint64(idx), 10)
	}
	if err := wire.WriteLine(co.client.conn, "GETBRICKS "+strings.Join(toks, " ")); err != nil {
		return nil, err
	}
	frame, err := wire.ReadFrame(co.client.r)
	if err != nil {
		return nil, err
	}

	out := make([][]byte, len(indices))
	pos := 0
	bricks := co.ds.meta.Bricks
	for i, idx := range indices {
		sz := int(bricks[idx].Size)
		if pos+sz > len(frame) {
			return nil, bvlerr.Wrap(bvlerr.Protocol, "rclient.getBricks", fmt.Errorf("short response frame"))
		}
		out[i] = frame[pos : pos+sz]
		pos += sz
	}
	return out, nil
}
