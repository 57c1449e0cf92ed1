package stream

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// chunksPerWorker splits the index space finer than the worker count
// so that a worker stuck on a few long units doesn't hold up the rest.
const chunksPerWorker = 8

// ParallelFor calls fn over the half-open index ranges covering [0, n),
// on up to workers goroutines (runtime.NumCPU() if workers <= 0).
// Every index is handed to exactly one call. ParallelFor returns only after all
// calls have returned, so writes made by fn are visible to the caller.
func ParallelFor(n, workers int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	if workers == 1 {
		fn(0, n)
		return
	}

	chunk := n / (workers * chunksPerWorker)
	if chunk < 1 {
		chunk = 1
	}

	var next atomic.Int64
	wg := sync.WaitGroup{}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for {
				lo := int(next.Add(int64(chunk))) - chunk
				if lo >= n {
					return
				}
				fn(lo, min(lo+chunk, n))
			}
		}()
	}
	wg.Wait()
}
