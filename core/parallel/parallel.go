// Package parallel splits index ranges across CPU cores.
package parallel

import (
	"runtime"
	"sync"
)

// MaxWorkers caps the number of goroutines used by Parallelize.
// Zero means runtime.NumCPU().
var MaxWorkers = 0

func workerCount(items int) int {
	n := MaxWorkers
	if n <= 0 {
		n = runtime.NumCPU()
	}
	if n > items {
		n = items
	}
	return n
}

// Parallelize divides [0, items) into contiguous chunks, one per worker,
// and calls fn(start, end) for each chunk concurrently.
// fn must only write to state owned by its own range.
func Parallelize(items int, fn func(start, end int)) {
	if items <= 0 {
		return
	}

	numWorkers := workerCount(items)
	chunkSize := (items + numWorkers - 1) / numWorkers

	var wg sync.WaitGroup
	for start := 0; start < items; start += chunkSize {
		end := start + chunkSize
		if end > items {
			end = items
		}
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			fn(s, e)
		}(start, end)
	}
	wg.Wait()
}

// ParallelizeWithThreshold runs fn sequentially over the whole range when
// items <= threshold, and through Parallelize otherwise.
func ParallelizeWithThreshold(items int, threshold int, fn func(start, end int)) {
	if items <= 0 {
		return
	}
	if items <= threshold {
		fn(0, items)
		return
	}
	Parallelize(items, fn)
}

// ParallelizeErr is Parallelize for functions that can fail.
// It returns the error of the lowest failing chunk so the result does not
// depend on goroutine scheduling.
func ParallelizeErr(items int, threshold int, fn func(start, end int) error) error {
	if items <= 0 {
		return nil
	}
	if items <= threshold {
		return fn(0, items)
	}

	numWorkers := workerCount(items)
	chunkSize := (items + numWorkers - 1) / numWorkers
	errs := make([]error, numWorkers)

	Parallelize(numWorkers, func(ws, we int) {
		for w := ws; w < we; w++ {
			start := w * chunkSize
			end := start + chunkSize
			if end > items {
				end = items
			}
			if start >= end {
				continue
			}
			errs[w] = fn(start, end)
		}
	})

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
