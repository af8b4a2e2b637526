// Package drive implements the per-axis CiA 402-style drive state machine of
// spec §4.11: bring-up via successive control words, cyclic PDO
// encode/decode, and encoder-count <-> radian conversion.
package drive

import (
	"encoding/binary"
	"math"

	"github.com/Benergy80/Kuka-Jetson-Conversion/ctlerr"
)

// State is one member of the closed CiA 402 drive-state set.
type State int

// The closed set of drive states (spec §3/§4.11).
const (
	NotReady State = iota
	SwitchOnDisabled
	ReadyToSwitchOn
	SwitchedOn
	OperationEnabled
	QuickStopActive
	FaultReactionActive
	Fault
)

func (s State) String() string {
	switch s {
	case NotReady:
		return "NotReady"
	case SwitchOnDisabled:
		return "SwitchOnDisabled"
	case ReadyToSwitchOn:
		return "ReadyToSwitchOn"
	case SwitchedOn:
		return "SwitchedOn"
	case OperationEnabled:
		return "OperationEnabled"
	case QuickStopActive:
		return "QuickStopActive"
	case FaultReactionActive:
		return "FaultReactionActive"
	case Fault:
		return "Fault"
	}
	return "Unknown"
}

// Control words (spec §4.11, exact).
const (
	ControlWordShutdown   uint16 = 0x06
	ControlWordSwitchOn   uint16 = 0x07
	ControlWordEnableOp   uint16 = 0x0F
	ControlWordQuickStop  uint16 = 0x02
	ControlWordFaultReset uint16 = 0x80
)

// DecodeStatusWord decodes a CiA 402 status word into a State by the exact
// masked pattern match of spec §6.
func DecodeStatusWord(sw uint16) State {
	switch {
	case sw&0x4F == 0x00:
		return NotReady
	case sw&0x4F == 0x40:
		return SwitchOnDisabled
	case sw&0x6F == 0x21:
		return ReadyToSwitchOn
	case sw&0x6F == 0x23:
		return SwitchedOn
	case sw&0x6F == 0x27:
		return OperationEnabled
	case sw&0x6F == 0x07:
		return QuickStopActive
	case sw&0x4F == 0x0F:
		return FaultReactionActive
	case sw&0x4F == 0x08:
		return Fault
	}
	return NotReady
}

// nextControlWord returns the control word that advances from current
// towards OperationEnabled, per the bring-up sequence
// SwitchOnDisabled -> ReadyToSwitchOn -> SwitchedOn -> OperationEnabled
// achieved by 0x06, 0x07, 0x0F in turn.
func nextControlWord(current State) (uint16, bool) {
	switch current {
	case SwitchOnDisabled:
		return ControlWordShutdown, true
	case ReadyToSwitchOn:
		return ControlWordSwitchOn, true
	case SwitchedOn:
		return ControlWordEnableOp, true
	}
	return 0, false
}

// ModeOfOperation is the CiA 402 mode-of-operation register.
type ModeOfOperation int8

// The closed set of modes of operation (spec §4.11).
const (
	ProfilePosition ModeOfOperation = iota
	Velocity
	ProfileVelocity
	ProfileTorque
	Homing
	CyclicSyncPosition
	CyclicSyncVelocity
	CyclicSyncTorque
)

// Params carries the per-axis encoder-count <-> radian conversion factors
// (spec §4.11): EncoderResolution counts/rev, GearRatio motor:joint turns,
// PositionOffset radians applied after conversion.
type Params struct {
	EncoderResolution int32
	GearRatio         float64
	PositionOffset    float64
}

// RadiansToCounts converts a joint-space radian position to raw encoder
// counts at the motor shaft.
func (p Params) RadiansToCounts(rad float64) int32 {
	motorRad := (rad - p.PositionOffset) * p.GearRatio
	counts := motorRad / (2 * math.Pi) * float64(p.EncoderResolution)
	return int32(math.Round(counts))
}

// CountsToRadians converts raw encoder counts at the motor shaft to a
// joint-space radian position.
func (p Params) CountsToRadians(counts int32) float64 {
	motorRad := float64(counts) / float64(p.EncoderResolution) * 2 * math.Pi
	return motorRad/p.GearRatio + p.PositionOffset
}

// OutputPDO is the per-drive cyclic output frame (spec §6): 6 bytes,
// little-endian, {ControlWord: u16, TargetPosition: i32}.
type OutputPDO struct {
	ControlWord    uint16
	TargetPosition int32
}

// Encode serializes the output PDO to its 6-byte wire form.
func (o OutputPDO) Encode() [6]byte {
	var buf [6]byte
	binary.LittleEndian.PutUint16(buf[0:2], o.ControlWord)
	binary.LittleEndian.PutUint32(buf[2:6], uint32(o.TargetPosition))
	return buf
}

// InputPDO is the per-drive cyclic input frame (spec §6): 6 bytes,
// little-endian, {StatusWord: u16, ActualPosition: i32}.
type InputPDO struct {
	StatusWord     uint16
	ActualPosition int32
}

// DecodeInputPDO parses a 6-byte input PDO frame.
func DecodeInputPDO(buf [6]byte) InputPDO {
	return InputPDO{
		StatusWord:     binary.LittleEndian.Uint16(buf[0:2]),
		ActualPosition: int32(binary.LittleEndian.Uint32(buf[2:6])),
	}
}

// Axis is one per-axis drive state machine instance.
type Axis struct {
	Params Params

	state State
	mode  ModeOfOperation
}

// NewAxis returns an Axis starting in NotReady, with the given
// encoder/gear/offset conversion parameters.
func NewAxis(p Params) *Axis {
	return &Axis{Params: p, state: NotReady, mode: CyclicSyncPosition}
}

// State returns the axis's last-observed drive state.
func (a *Axis) State() State { return a.state }

// Mode returns the axis's current mode of operation.
func (a *Axis) Mode() ModeOfOperation { return a.mode }

// SetMode changes the mode of operation. Rejected while OperationEnabled,
// per spec §4.11.
func (a *Axis) SetMode(m ModeOfOperation) error {
	if a.state == OperationEnabled {
		return ctlerr.New(ctlerr.InvalidTransition, "mode of operation cannot change while OperationEnabled")
	}
	a.mode = m
	return nil
}

// NextControlWord returns the control word to send this cycle to advance
// bring-up towards OperationEnabled, given the axis's last-observed state.
// Returns ok=false once OperationEnabled is reached (no further bring-up
// control word is needed).
func (a *Axis) NextControlWord() (uint16, bool) {
	return nextControlWord(a.state)
}

// QuickStop returns the quick-stop control word.
func QuickStop() uint16 { return ControlWordQuickStop }

// FaultReset returns the fault-reset control word; only valid transition
// out of Fault (spec §4.11: "only Fault -> SwitchOnDisabled requires
// explicit reset").
func FaultReset() uint16 { return ControlWordFaultReset }

// ExchangeResult is the outcome of one cyclic PDO exchange for an axis.
type ExchangeResult struct {
	State          State
	ActualPosition float64
}

// Exchange builds the output PDO for the desired target position and
// control word, and folds the corresponding input PDO back into the axis's
// observed state (spec §4.11 cyclic exchange: write control word + target,
// parse status word + actual position, decode status word into DriveState).
func (a *Axis) Exchange(controlWord uint16, targetRad float64, in InputPDO) (OutputPDO, ExchangeResult) {
	out := OutputPDO{
		ControlWord:    controlWord,
		TargetPosition: a.Params.RadiansToCounts(targetRad),
	}

	a.state = DecodeStatusWord(in.StatusWord)
	result := ExchangeResult{
		State:          a.state,
		ActualPosition: a.Params.CountsToRadians(in.ActualPosition),
	}
	return out, result
}

// Ready reports whether the axis has completed bring-up.
func (a *Axis) Ready() bool { return a.state == OperationEnabled }
