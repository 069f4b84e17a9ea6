package crawler

import (
	"net/url"
	"sync"

	"github.com/nao1215/stealthcrawler/internal/model"
)

// Frontier is the crawl's work queue: a FIFO of pending tasks plus the
// visited set that guarantees no URL is fetched twice.
//
// Design decision: Checking the visited set and enqueueing happen under
// one lock because:
//  1. Two workers discovering the same link concurrently must not both
//     enqueue it; check-then-mark as separate steps would race.
//  2. The visited set doubles as the dedupe record for the whole crawl,
//     so it only ever grows.
//  3. A single mutex is plenty at crawler concurrency levels.
//
// Dequeue blocks while the queue is empty but tasks are still in flight,
// since an in-flight task may discover new links. It returns false only
// when the crawl is drained or closed, which is the workers' signal to
// exit.
type Frontier struct {
	mu   sync.Mutex
	cond *sync.Cond

	visited        map[string]struct{}
	queue          []model.CrawlTask
	inflight       int
	closed         bool
	maxDepth       int
	sameDomainOnly bool
	seedHost       string
}

// NewFrontier creates a frontier seeded with the given URL at depth 0.
// The seed is marked visited immediately so it cannot be re-enqueued by
// a link pointing back at it.
func NewFrontier(seed *url.URL, maxDepth int, sameDomainOnly bool) *Frontier {
	f := &Frontier{
		visited:        make(map[string]struct{}),
		queue:          make([]model.CrawlTask, 0),
		maxDepth:       maxDepth,
		sameDomainOnly: sameDomainOnly,
		seedHost:       seed.Hostname(),
	}
	f.cond = sync.NewCond(&f.mu)

	key := normalizeURL(seed)
	f.visited[key] = struct{}{}
	f.queue = append(f.queue, model.CrawlTask{URL: seed.String(), Depth: 0})
	return f
}

// Enqueue offers a discovered URL at the given depth. It reports whether
// the URL was accepted: unvisited, within the depth bound, in scope, and
// crawlable. Rejection is normal and carries no error.
func (f *Frontier) Enqueue(rawURL string, depth int) bool {
	if depth > f.maxDepth {
		return false
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !crawlable(u) {
		return false
	}
	if f.sameDomainOnly && !sameDomain(u.Hostname(), f.seedHost) {
		return false
	}

	key := normalizeURL(u)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, seen := f.visited[key]; seen {
		return false
	}
	f.visited[key] = struct{}{}
	f.queue = append(f.queue, model.CrawlTask{URL: u.String(), Depth: depth})
	f.cond.Signal()
	return true
}

// Dequeue removes the oldest pending task, blocking while the queue is
// empty but other tasks are in flight. ok=false means the crawl is over:
// drained or closed. Every true return must be paired with a Done call.
func (f *Frontier) Dequeue() (task model.CrawlTask, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for len(f.queue) == 0 && f.inflight > 0 && !f.closed {
		f.cond.Wait()
	}
	if f.closed || len(f.queue) == 0 {
		return model.CrawlTask{}, false
	}

	task = f.queue[0]
	f.queue = f.queue[1:]
	f.inflight++
	return task, true
}

// Done marks one dequeued task finished. When the last in-flight task
// finishes against an empty queue, blocked workers are released.
func (f *Frontier) Done() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if f.inflight == 0 && len(f.queue) == 0 {
		f.cond.Broadcast()
	}
}

// Close ends the crawl: pending tasks are discarded and blocked workers
// wake up with ok=false. Used for the page budget, aborts, and cancels.
func (f *Frontier) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.queue = nil
	f.cond.Broadcast()
}

// VisitedCount returns the number of unique URLs accepted so far.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.visited)
}

// Pending returns the number of queued, not yet dequeued tasks.
func (f *Frontier) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}
