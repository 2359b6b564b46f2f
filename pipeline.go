package main

import (
	"runtime"
	"sync"
	"time"
)

// parallelThreshold is the LED count below which a tick runs on the calling
// goroutine.
const parallelThreshold = 64

// Pipeline turns frames into LED colors: region averaging, the color
// transform chain and temporal smoothing, once per refresh tick.
type Pipeline struct {
	regions      []Region
	chains       []Chain
	analyzer     *Analyzer
	kind         SmoothingKind
	timeConstant time.Duration
	workers      int

	// out is the previous output, smoothed toward the new targets in place.
	out []RGB
}

// NewPipeline returns a pipeline with all LEDs starting black. chains may be
// shorter than regions; missing chains are empty.
func NewPipeline(regions []Region, chains []Chain, analyzer *Analyzer, kind SmoothingKind, timeConstant time.Duration) *Pipeline {
	bound := make([]Chain, len(regions))
	copy(bound, chains)
	return &Pipeline{
		regions:      regions,
		chains:       bound,
		analyzer:     analyzer,
		kind:         kind,
		timeConstant: timeConstant,
		workers:      runtime.GOMAXPROCS(0),
		out:          make([]RGB, len(regions)),
	}
}

// Len returns the number of LEDs.
func (p *Pipeline) Len() int { return len(p.regions) }

// Output returns the current colors. The slice is owned by the pipeline and
// changes on the next Tick.
func (p *Pipeline) Output() []RGB { return p.out }

// Tick computes the colors for frame f, elapsed time after the previous tick.
// A nil or empty frame averages to black everywhere. The returned slice is
// the same as Output.
func (p *Pipeline) Tick(f *Frame, elapsed time.Duration) []RGB {
	factor := SmoothingFactor(elapsed, p.timeConstant)

	var maps [][]int
	if !f.Empty() {
		maps = p.analyzer.IndexMaps(f, p.regions)
	}

	process := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			var avg RGB
			if maps != nil {
				avg = averageIndices(f, maps[i])
			}
			p.out[i] = Smooth(p.kind, p.out[i], p.chains[i].Apply(avg), factor)
		}
	}

	n := len(p.regions)
	if n < parallelThreshold || p.workers <= 1 {
		process(0, n)
		return p.out
	}

	// Each worker owns a contiguous block of output slots.
	chunk := (n + p.workers - 1) / p.workers
	var wg sync.WaitGroup
	for lo := 0; lo < n; lo += chunk {
		hi := min(lo+chunk, n)
		wg.Go(func() { process(lo, hi) })
	}
	wg.Wait()
	return p.out
}

// Reset sets every LED back to black.
func (p *Pipeline) Reset() {
	clear(p.out)
}
