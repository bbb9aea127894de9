/*package thread contains functions useful for multi-threading.*/
package thread

import (
	"fmt"
	"runtime"
	"sync"
)

// Set sets the number of OS threads amrio may use. n = -1 uses every core.
func Set(n int) error {
	if n == -1 {
		n = runtime.NumCPU()
	}
	if n < 1 {
		return fmt.Errorf("%d threads were requested, but at least one thread is needed. If you want amrio to use the maximum number of threads per node, set Threads = -1.", n)
	} else if n > runtime.NumCPU() {
		return fmt.Errorf("%d threads were requested, but your system only has %d cores per node. If you want amrio to use the maximum number of threads per node, set Threads = -1.", n, runtime.NumCPU())
	}

	runtime.GOMAXPROCS(n)
	return nil
}

// Map calls f(i) for every i in [0, n) using at most workers goroutines.
// Every call is made even if some fail. The error returned is the one from
// the smallest i which failed.
func Map(n, workers int, f func(i int) error) error {
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}

	errs := make([]error, n)
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	wg := &sync.WaitGroup{}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range jobs {
				errs[i] = f(i)
			}
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
