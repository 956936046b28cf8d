package renderer

const (
	DefaultMaxFrames = 100000

	MinDescalingLevel = 1
	MaxDescalingLevel = 8
)

// FrameState tracks progressive accumulation. Current is the index of the
// last rendered frame; -1 means nothing has been rendered since the last
// reset.
type FrameState struct {
	Current   int
	MaxFrames int

	// Render at a fraction of the region size while the camera is dragged.
	Descaling      bool
	DescalingLevel int

	// Number of resets since creation.
	Resets int

	resetPending bool
}

func NewFrameState(maxFrames, descalingLevel int) FrameState {
	if maxFrames < 1 {
		maxFrames = DefaultMaxFrames
	}
	return FrameState{
		Current:        -1,
		MaxFrames:      maxFrames,
		DescalingLevel: ClampDescalingLevel(descalingLevel),
	}
}

// Restart accumulation. The step that resets does not advance.
func (fs *FrameState) Reset() {
	fs.Current = -1
	fs.Resets++
	fs.resetPending = true
}

// Get the index of the frame to dispatch next.
func (fs *FrameState) Next() int {
	return fs.Current + 1
}

// Returns true once MaxFrames frames have been accumulated.
func (fs *FrameState) Done() bool {
	return fs.Current+1 >= fs.MaxFrames
}

// Finish a step. Current moves forward unless a reset happened during the
// step or the frame budget is exhausted.
func (fs *FrameState) Advance() {
	if fs.resetPending {
		fs.resetPending = false
		return
	}
	if !fs.Done() {
		fs.Current++
	}
}

// Clamp a descaling level to the supported range.
func ClampDescalingLevel(level int) int {
	if level < MinDescalingLevel {
		return MinDescalingLevel
	}
	if level > MaxDescalingLevel {
		return MaxDescalingLevel
	}
	return level
}
