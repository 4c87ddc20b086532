// Package machine holds the data model shared by the kinematics, stepgen,
// and planner packages: mechanical positions, Cartesian coordinates, and the
// static configuration of a machine's axes, endstops, and heaters.
package machine

// Mechanical is an ordered tuple of signed step counts, one per mechanical
// axis. For linear-delta machines this is the three carriage step counts
// A,B,C followed by the extruder E; for Cartesian machines it is X,Y,Z,E.
// It is owned exclusively by the planner; everyone else reads a snapshot.
type Mechanical []int64

// Clone returns an independent copy, so iterators never alias the planner's
// live position.
func (m Mechanical) Clone() Mechanical {
	out := make(Mechanical, len(m))
	copy(out, m)
	return out
}

// XYZE is a Cartesian position in millimeters, with E as the extruder's
// linear filament position.
type XYZE struct {
	X, Y, Z, E float64
}

// Velocity mirrors XYZE but represents per-axis requested speed in mm/s.
type Velocity struct {
	X, Y, Z, E float64
}

// AxisConfig is the static, per-axis configuration common to every
// mechanical axis regardless of kinematics.
type AxisConfig struct {
	StepPin      string  `json:"step_pin"`
	DirPin       string  `json:"dir_pin"`
	EnablePin    string  `json:"enable_pin,omitempty"`
	StepsPerMM   float64 `json:"steps_per_mm"`
	MaxVelocity  float64 `json:"max_velocity"`
	MaxAccel     float64 `json:"max_accel"`
	HomingVel    float64 `json:"homing_vel"`
	MinPosition  float64 `json:"min_position"`
	MaxPosition  float64 `json:"max_position"`
	InvertDir    bool    `json:"invert_dir"`
	InvertEnable bool    `json:"invert_enable"`
}

// EndstopConfig describes a single mechanical/optical endstop switch.
type EndstopConfig struct {
	Pin    string `json:"pin"`
	Invert bool   `json:"invert"`
}

// HeaterConfig describes a PID-controlled heater and its RC thermistor.
type HeaterConfig struct {
	SensorPin string     `json:"sensor_pin"`
	HeaterPin string     `json:"heater_pin"`
	PID       [3]float64 `json:"pid"`
	MinTemp   float64    `json:"min_temp"`
	MaxTemp   float64    `json:"max_temp"`
	MaxPower  float64    `json:"max_power"`
}

// LevelingMatrix is a static 3x3 Cartesian->physical leveling transform,
// applied after forward kinematics (spec.md §3: "no floating-point
// transform matrices beyond a static 3x3 leveling transform").
type LevelingMatrix [3][3]float64

// Identity returns the no-op leveling transform.
func Identity() LevelingMatrix {
	return LevelingMatrix{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// Apply transforms a point through the matrix.
func (m LevelingMatrix) Apply(x, y, z float64) (float64, float64, float64) {
	return m[0][0]*x + m[0][1]*y + m[0][2]*z,
		m[1][0]*x + m[1][1]*y + m[1][2]*z,
		m[2][0]*x + m[2][1]*y + m[2][2]*z
}

// DeltaParams holds linear-delta specific geometry.
type DeltaParams struct {
	TowerRadius    float64 `json:"tower_radius"`
	RodLength      float64 `json:"rod_length"`
	HomeHeight     float64 `json:"home_height"`
	BuildRadius    float64 `json:"build_radius"`
	ZMin           float64 `json:"z_min"`
	Leveling       LevelingMatrix
}

// SchedulerConfig tunes the hardware scheduler's ring buffer and
// backpressure windows (spec.md §3, §4.4.3).
type SchedulerConfig struct {
	RingSize          int     `json:"ring_size"`
	FrameRateHz       float64 `json:"frame_rate_hz"`
	MaxSchedAheadUsec float64 `json:"max_sched_ahead_usec"`
	MinSchedAheadUsec float64 `json:"min_sched_ahead_usec"`
}

// StepperDriverConfig configures a TMC-style SPI stepper driver's current
// and microstepping registers for one mechanical axis. An axis with no
// entry in MachineConfig.Steppers is assumed to be a plain step/dir driver
// (e.g. an A4988) needing no register configuration.
type StepperDriverConfig struct {
	SPIBus      uint8   `json:"spi_bus"`
	SPIRateHz   uint32  `json:"spi_rate_hz"`
	RunCurrent  uint8   `json:"run_current"`
	HoldCurrent uint8   `json:"hold_current"`
	HoldDelay   uint8   `json:"hold_delay"`
	Microsteps  uint16  `json:"microsteps"`
	StealthChop bool    `json:"stealth_chop"`
}

// MachineConfig is the complete static configuration of a machine.
type MachineConfig struct {
	Mode       string                          `json:"mode"`
	Kinematics string                          `json:"kinematics"` // "cartesian" | "linear_delta"
	Axes       map[string]AxisConfig           `json:"axes"`
	Endstops   map[string]EndstopConfig        `json:"endstops"`
	Heaters    map[string]HeaterConfig         `json:"heaters"`
	Steppers   map[string]StepperDriverConfig  `json:"steppers,omitempty"`

	Delta DeltaParams `json:"delta"`

	DefaultVelocity   float64 `json:"default_velocity"`
	DefaultAccel      float64 `json:"default_accel"`
	JunctionDeviation float64 `json:"junction_deviation"`

	Scheduler SchedulerConfig `json:"scheduler"`
}
