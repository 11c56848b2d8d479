package lift

import "math"

// Lift linkage geometry. The gripper height is a deterministic
// monotonic function of the arm angle: the arm pivots at the shoulder
// joint and the gripper rides the end of the link.
const (
	ArmLengthMM      = 66.0
	ShoulderHeightMM = 45.0

	HeightLowDockMM  = 32.0
	HeightHighDockMM = 76.0
	HeightCarryMM    = 92.0
)

// Physical travel limits in radians, derived from the dock and carry
// heights.
var (
	MinAngleRad = HeightToAngleRad(HeightLowDockMM)
	MaxAngleRad = HeightToAngleRad(HeightCarryMM)
)

func AngleToHeightMM(angleRad float64) float64 {
	return ShoulderHeightMM + ArmLengthMM*math.Sin(angleRad)
}

func HeightToAngleRad(heightMM float64) float64 {
	s := (heightMM - ShoulderHeightMM) / ArmLengthMM
	return math.Asin(clamp(s, -1, 1))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }

func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }
