package tracer

// Material visualizations that replace the path traced result.
type DebugMode int

const (
	NoDebug DebugMode = iota
	DebugBaseColor
	DebugNormal
	DebugMetallic
	DebugEmissive
	DebugAlpha
	DebugRoughness
	DebugTexCoord
	DebugTangent
	DebugDepth
	DebugRadiance
	DebugWeight
	DebugRayDir
	DebugHeatmap
	NumDebugModes
)

var debugModeNames = [NumDebugModes]string{
	"No Debug",
	"BaseColor",
	"Normal",
	"Metallic",
	"Emissive",
	"Alpha",
	"Roughness",
	"TexCoord",
	"Tangent",
	"Depth",
	"Radiance",
	"Weight",
	"RayDir",
	"HeatMap",
}

func (m DebugMode) String() string {
	if m < 0 || m >= NumDebugModes {
		return "unknown"
	}
	return debugModeNames[m]
}

// Get the next debug mode, wrapping around after the last one.
func (m DebugMode) Next() DebugMode {
	return (m + 1) % NumDebugModes
}

// The material model.
type PbrMode int

const (
	PbrDisney PbrMode = iota
	PbrGltf
)

func (m PbrMode) String() string {
	if m == PbrGltf {
		return "Gltf"
	}
	return "Disney"
}

// The per-frame parameter block delivered to renderers.
type State struct {
	// Index of the frame being rendered; 0 discards the accumulated image.
	Frame int

	MaxDepth              int
	MaxSamples            int
	FireflyClampThreshold float32
	HdrMultiplier         float32
	DebugMode             DebugMode
	PbrMode               PbrMode
	Size                  Size

	// Heat map bounds in nanoseconds per pixel.
	MinHeatmap int
	MaxHeatmap int

	// Blend the previous image into frame 0 instead of discarding it.
	Accumulate bool
}

func DefaultState() State {
	return State{
		MaxDepth:              10,
		MaxSamples:            1,
		FireflyClampThreshold: 1,
		HdrMultiplier:         1,
		MaxHeatmap:            65000,
	}
}
