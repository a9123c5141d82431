package testutil

import (
	"errors"
	"sync"
	"sync/atomic"

	"scoring/internal/sentinel"
)

// ConcurrentResult counts how concurrent store operations ended.
type ConcurrentResult struct {
	Successes   int32
	NotFounds   int32
	Unavailable int32
	Errors      int32
}

func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.NotFounds + r.Unavailable + r.Errors
}

// RunConcurrent calls fn from n goroutines at once and sorts the outcomes by
// store sentinel.
func RunConcurrent(n int, fn func(idx int) error) *ConcurrentResult {
	var (
		counts [4]atomic.Int32
		start  = make(chan struct{})
		wg     sync.WaitGroup
	)
	for i := range n {
		wg.Go(func() {
			<-start
			counts[outcome(fn(i))].Add(1)
		})
	}
	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:   counts[0].Load(),
		NotFounds:   counts[1].Load(),
		Unavailable: counts[2].Load(),
		Errors:      counts[3].Load(),
	}
}

func outcome(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, sentinel.ErrNotFound):
		return 1
	case errors.Is(err, sentinel.ErrUnavailable):
		return 2
	default:
		return 3
	}
}
