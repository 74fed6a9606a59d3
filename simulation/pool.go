package simulation

import (
	"runtime"
	"sync"
)

// parallelThreshold is the minimum particle count to use parallel processing.
// Smaller sets run on the calling goroutine.
const parallelThreshold = 64

// workChunk represents a range of snapshot entries for a worker to process.
type workChunk struct {
	start, end int
	dt         float64
}

// pool is a set of persistent workers that run one function over chunks.
type pool struct {
	numWorkers int
	compute    func(start, end int, dt float64)

	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newPool(workers int, compute func(start, end int, dt float64)) *pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &pool{numWorkers: workers, compute: compute}
}

// start launches persistent worker goroutines.
func (p *pool) start() {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

// stop signals all workers to exit and waits for them.
func (p *pool) stop() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

// worker runs in a goroutine, processing chunks until stopped.
func (p *pool) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			p.compute(chunk.start, chunk.end, chunk.dt)
			p.doneChan <- struct{}{}
		}
	}
}

// run processes n entries, in parallel when it pays off.
func (p *pool) run(n int, dt float64) {
	if n < parallelThreshold || p.numWorkers == 1 {
		p.compute(0, n, dt)
		return
	}
	if !p.running {
		p.start()
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers

	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := start + chunkSize
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		p.workChan <- workChunk{start: start, end: end, dt: dt}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
}
