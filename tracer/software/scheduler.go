package software

import (
	"math"
	"time"
)

// The row scheduler splits the frame into blocks of rows, one per worker,
// assuming that the volume of tracing work between two subsequent frames is
// approximately the same.
type rowScheduler struct {
	blockAssignment []int
	blockTime       []time.Duration
}

func newRowScheduler(workers int) *rowScheduler {
	if workers < 1 {
		workers = 1
	}
	return &rowScheduler{
		blockAssignment: make([]int, workers),
		blockTime:       make([]time.Duration, workers),
	}
}

// Split the frame rows between the workers using feedback collected from
// the previous frame.
//
// When previous frame information is available the scheduler uses the
// following formula for estimating the workload for worker w and frame i+1:
// w_i, f_i+1 = (blockH,w_i / time,w_i) / Σ(blockH_i-1 / time,i-1)
func (sch *rowScheduler) Schedule(frameH int) []int {
	workers := len(sch.blockAssignment)
	if frameH < workers || !sch.haveFeedback() {
		return sch.evenSplit(frameH)
	}

	var total float64
	for idx, rows := range sch.blockAssignment {
		total += float64(rows) / float64(sch.blockTime[idx])
	}

	scaler := float64(frameH) / total
	scheduledRows := 0
	for idx, rows := range sch.blockAssignment {
		speed := float64(rows) / float64(sch.blockTime[idx])
		sch.blockAssignment[idx] = int(math.Max(1.0, math.Floor(speed*scaler)))
		scheduledRows += sch.blockAssignment[idx]
	}

	// In case rows don't add up to the frame height append the missing ones to the first worker
	sch.blockAssignment[0] += frameH - scheduledRows
	if sch.blockAssignment[0] < 1 {
		return sch.evenSplit(frameH)
	}

	sch.clearFeedback()
	return sch.blockAssignment
}

// Record how long a worker took to render its block.
func (sch *rowScheduler) Record(worker int, elapsed time.Duration) {
	if elapsed <= 0 {
		elapsed = 1
	}
	sch.blockTime[worker] = elapsed
}

func (sch *rowScheduler) haveFeedback() bool {
	for idx, rows := range sch.blockAssignment {
		if rows == 0 || sch.blockTime[idx] == 0 {
			return false
		}
	}
	return true
}

func (sch *rowScheduler) clearFeedback() {
	for idx := range sch.blockTime {
		sch.blockTime[idx] = 0
	}
}

func (sch *rowScheduler) evenSplit(frameH int) []int {
	workers := len(sch.blockAssignment)
	for idx := range sch.blockAssignment {
		sch.blockAssignment[idx] = frameH / workers
	}
	sch.blockAssignment[0] += frameH % workers
	sch.clearFeedback()
	return sch.blockAssignment
}
