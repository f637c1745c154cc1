package imagehash

import (
	"context"
	"runtime"
)

// Hasher runs image hashing on a fixed pool of workers so that decode and
// hash work for large uploads never runs inline on a request goroutine.
type Hasher struct {
	jobs chan hashJob
	done chan struct{}
}

type hashJob struct {
	buf   []byte
	reply chan hashResult
}

type hashResult struct {
	hash VeracityHash
	err  error
}

// NewHasher starts a pool with the given number of workers; values below 1
// default to GOMAXPROCS.
func NewHasher(workers int) *Hasher {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	h := &Hasher{
		jobs: make(chan hashJob),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go h.work()
	}
	return h
}

func (h *Hasher) work() {
	for {
		select {
		case job := <-h.jobs:
			hash, err := Hash(job.buf)
			// reply is single-use and buffered, the send never blocks.
			job.reply <- hashResult{hash: hash, err: err}
		case <-h.done:
			return
		}
	}
}

// Hash submits buf to the pool and waits for the result or for ctx to be
// canceled.
func (h *Hasher) Hash(ctx context.Context, buf []byte) (VeracityHash, error) {
	if err := ctx.Err(); err != nil {
		return VeracityHash{}, err
	}
	job := hashJob{buf: buf, reply: make(chan hashResult, 1)}
	select {
	case h.jobs <- job:
	case <-ctx.Done():
		return VeracityHash{}, ctx.Err()
	}
	select {
	case res := <-job.reply:
		return res.hash, res.err
	case <-ctx.Done():
		return VeracityHash{}, ctx.Err()
	}
}

// Shutdown stops the workers. Pending Hash calls may still complete.
func (h *Hasher) Shutdown() {
	close(h.done)
}
