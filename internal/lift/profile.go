package lift

// Control loop timing and fixed controller constants.
const (
	// ControlDT is the fixed control period in seconds.
	ControlDT   = 0.005
	ControlDTMS = 5

	// MaxLiftSpeedRadPerSec and MaxLiftAccelRadPerSec2 bound commanded
	// speed and acceleration.
	MaxLiftSpeedRadPerSec  = 10.0
	MaxLiftAccelRadPerSec2 = 1000.0

	// How long the lift needs to stop moving for before it is
	// considered limited against the hard stop.
	liftStopTimeMS = 500

	// Time to let the motor relax unpowered before snapping the angle
	// reference during calibration.
	liftRelaxTimeMS = 250

	maxLiftConsideredStoppedRadPerSec = 0.001

	speedFilteringCoeff = 0.9

	// Used by SetDesiredAngle/SetDesiredHeight without a duration.
	defaultStartAccelFrac = 0.25
	defaultEndAccelFrac   = 0.25

	// Step by which the integral error sum decays while in position.
	angleErrorSumDecayStep = 0.02

	// In-position power ceilings. The carrying threshold sits just
	// under the syscon burnout protection threshold; the idle one is
	// low enough for syscon to disable the encoders.
	maxPowerInPositionWhileCarrying = 0.24
	maxPowerInPosition              = 0.1

	burnoutTimeThreshMS = 2000

	inPositionTimeMS = 100

	reenableTimeoutMS = 2000

	bracingPower = -0.8

	// The motor stays unpowered for this long after Unbrace before the
	// current angle is re-latched as the setpoint.
	unbracePeriodMS = 200

	checkingForLoadTimeoutMS = 500

	calibTamperCountThresh = 5
)

// Derived angle constants.
var (
	// AngleTolRad is the in-position tolerance.
	AngleTolRad = DegToRad(1.0)

	// D control is suppressed inside these bands near the travel limits
	// to prevent the buzzing that occurs there.
	noDTermBandRad = DegToRad(5.0)

	calibTamperRiseRad = DegToRad(10.0)

	checkingForLoadAngleDiffThresh = DegToRad(1.0)
)

// Profile selects the controller gains and encoder dead-band for the
// target environment. The simulated plant never settles to a perfectly
// still encoder, so the simulation profile ignores sub-resolution error
// and drops the derivative and integral terms.
type Profile struct {
	Kp          float64
	Ki          float64
	Kd          float64
	MaxErrorSum float64

	// EncoderDeadbandRad zeroes position errors smaller than the
	// encoder resolution. Zero disables the dead-band.
	EncoderDeadbandRad float64
}

// PhysicalProfile returns the gains used on robot hardware.
func PhysicalProfile() Profile {
	return Profile{Kp: 3.0, Ki: 0.1, Kd: 3000.0, MaxErrorSum: 5.0}
}

// SimulationProfile returns the gains used against a simulated plant.
func SimulationProfile() Profile {
	return Profile{Kp: 3.0, Ki: 0, Kd: 0, MaxErrorSum: 10.0, EncoderDeadbandRad: DegToRad(0.35)}
}
