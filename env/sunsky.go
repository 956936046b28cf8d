package env

import (
	"math"

	"github.com/soerenfi/raytracing/types"
)

// DefaultMultiplier is the sky multiplier that maps the analytic model to
// unit brightness.
const DefaultMultiplier float32 = 0.0000101320

// Parameters of the analytic sun and sky model.
type SunAndSky struct {
	RGBUnitConversion types.Vec3
	Multiplier        float32

	Haze          float32
	RedBlueShift  float32
	Saturation    float32
	HorizonHeight float32

	GroundColor types.Vec3
	HorizonBlur float32

	NightColor       types.Vec3
	SunDiskIntensity float32

	SunDirection types.Vec3
	SunDiskScale float32

	SunGlowIntensity    float32
	YIsUp               bool
	PhysicallyScaledSun bool

	// Select the analytic sky instead of the loaded HDR image.
	InUse bool
}

func DefaultSunAndSky() SunAndSky {
	return SunAndSky{
		RGBUnitConversion:   types.XYZ(1, 1, 1),
		Multiplier:          DefaultMultiplier,
		Saturation:          1,
		GroundColor:         types.XYZ(0.4, 0.4, 0.4),
		HorizonBlur:         0.1,
		NightColor:          types.XYZ(0, 0, 0.01),
		SunDiskIntensity:    0.8,
		SunDirection:        types.XYZ(0, 0.78, 0.62),
		SunDiskScale:        5,
		SunGlowIntensity:    1,
		YIsUp:               true,
		PhysicallyScaledSun: true,
	}
}

// Derive the up axis from the camera up vector. Only an exact +Y up vector
// selects the Y-up model.
func (ss *SunAndSky) SyncUp(up types.Vec3) {
	ss.YIsUp = up[1] == 1
}

// Evaluate the sky radiance along a direction.
func (ss *SunAndSky) Eval(dir types.Vec3) types.Vec3 {
	dir = dir.Normalize()
	sunDir := ss.SunDirection.Normalize()

	var elevation, sunElevation float32
	if ss.YIsUp {
		elevation, sunElevation = dir[1], sunDir[1]
	} else {
		elevation, sunElevation = dir[2], sunDir[2]
	}
	elevation -= ss.HorizonHeight

	// Daylight fades out as the sun sets
	daylight := clamp01(sunElevation*4 + 0.5)

	zenith := types.XYZ(0.25-0.1*ss.RedBlueShift, 0.45, 0.85+0.1*ss.RedBlueShift)
	horizon := types.XYZ(0.8, 0.85, 0.9).Lerp(types.XYZ(1, 1, 1), clamp01(ss.Haze/15))
	sky := horizon.Lerp(zenith, clamp01(elevation))

	// Blend into the ground color below the horizon
	blur := ss.HorizonBlur
	if blur < 1e-3 {
		blur = 1e-3
	}
	groundWeight := clamp01(-elevation / blur)
	color := sky.Lerp(ss.GroundColor, groundWeight).Mul(daylight)

	// Sun disk and glow
	cosAngle := dir.Dot(sunDir)
	diskCos := float32(math.Cos(float64(ss.SunDiskScale) * 0.00465))
	if cosAngle >= diskCos && groundWeight < 1 {
		color = color.Add(types.XYZ(1, 0.95, 0.9).Mul(ss.SunDiskIntensity * 100))
	}
	if cosAngle > 0 {
		glow := float32(math.Pow(float64(cosAngle), 64)) * ss.SunGlowIntensity
		color = color.Add(types.XYZ(1, 0.9, 0.7).Mul(glow))
	}

	color = color.Add(ss.NightColor)
	color = saturate(color, ss.Saturation).MulVec(ss.RGBUnitConversion)

	if ss.PhysicallyScaledSun {
		color = color.Mul(ss.Multiplier / DefaultMultiplier)
	}
	return color
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func luminance(c types.Vec3) float32 {
	return c[0]*0.2126 + c[1]*0.7152 + c[2]*0.0722
}

func saturate(c types.Vec3, s float32) types.Vec3 {
	l := luminance(c)
	return types.XYZ(l, l, l).Lerp(c, s)
}
