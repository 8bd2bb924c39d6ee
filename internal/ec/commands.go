package ec

import "fmt"

// Keyboard backlight and LED commands from the CrOS EC command set, as
// implemented by the Framework laptop's embedded controller. All payloads are
// fixed-size and little-endian.
const (
	cmdPwmGetKeyboardBacklight = 0x0022
	cmdPwmSetKeyboardBacklight = 0x0023
	cmdLedControl              = 0x0029
)

// GetKeyboardBacklightRequest reads the current keyboard backlight state.
type GetKeyboardBacklightRequest struct{}

func (GetKeyboardBacklightRequest) Command() (uint32, uint32) {
	return cmdPwmGetKeyboardBacklight, 0
}

func (GetKeyboardBacklightRequest) MarshalBinary() ([]byte, error) { return nil, nil }

// KeyboardBacklightState is the backlight state as reported by the EC.
type KeyboardBacklightState struct {
	Percent uint8
	Enabled bool
}

func (*KeyboardBacklightState) Size() int { return 2 }

func (s *KeyboardBacklightState) UnmarshalBinary(data []byte) error {
	if len(data) != s.Size() {
		return fmt.Errorf("keyboard backlight state is %d bytes, got %d", s.Size(), len(data))
	}
	s.Percent = data[0]
	s.Enabled = data[1] != 0
	return nil
}

// EffectivePercent returns the brightness the control logic should treat as
// current: a disabled backlight is at 0, whatever percent it reports.
func (s KeyboardBacklightState) EffectivePercent() uint8 {
	if !s.Enabled {
		return 0
	}
	return s.Percent
}

// SetKeyboardBacklightRequest sets the keyboard backlight brightness.
type SetKeyboardBacklightRequest struct {
	Percent uint8
}

func (SetKeyboardBacklightRequest) Command() (uint32, uint32) { return cmdPwmSetKeyboardBacklight, 0 }

func (r SetKeyboardBacklightRequest) MarshalBinary() ([]byte, error) {
	return []byte{r.Percent}, nil
}

// EmptyResponse is the reply to commands that return no payload.
type EmptyResponse struct{}

func (*EmptyResponse) Size() int { return 0 }

func (*EmptyResponse) UnmarshalBinary(data []byte) error {
	if len(data) != 0 {
		return fmt.Errorf("expected empty response, got %d bytes", len(data))
	}
	return nil
}

// LedID selects one of the LEDs the EC controls.
type LedID uint8

const (
	LedBattery LedID = iota
	LedPower
	LedAdapter
	LedLeft
	LedRight
	LedRecoveryHWReinit
	LedSysrqDebug
)

// LedFlags modify an LED control command. With no flags set, the LED is
// switched off (or to the requested brightness values).
type LedFlags uint8

const (
	LedFlagsNone  LedFlags = 0
	LedFlagsQuery LedFlags = 1 << 0
	LedFlagsAuto  LedFlags = 1 << 1
)

// LedColorCount is the number of brightness channels per LED
// (red, green, blue, yellow, white, amber).
const LedColorCount = 6

// LedControlRequest sets the state of one EC-controlled LED.
type LedControlRequest struct {
	LedID      LedID
	Flags      LedFlags
	Brightness [LedColorCount]uint8
}

func (LedControlRequest) Command() (uint32, uint32) { return cmdLedControl, 1 }

func (r LedControlRequest) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 2+LedColorCount)
	buf[0] = byte(r.LedID)
	buf[1] = byte(r.Flags)
	copy(buf[2:], r.Brightness[:])
	return buf, nil
}

// LedControlResponse reports the brightness range per channel. keylightd only
// toggles the power LED between off and auto, so the ranges are unused.
type LedControlResponse struct {
	BrightnessRange [LedColorCount]uint8
}

func (*LedControlResponse) Size() int { return LedColorCount }

func (r *LedControlResponse) UnmarshalBinary(data []byte) error {
	if len(data) != r.Size() {
		return fmt.Errorf("led control response is %d bytes, got %d", r.Size(), len(data))
	}
	copy(r.BrightnessRange[:], data)
	return nil
}

// GetKeyboardBacklight reads the current keyboard backlight state.
func GetKeyboardBacklight(c Commander) (KeyboardBacklightState, error) {
	var state KeyboardBacklightState
	err := c.Command(GetKeyboardBacklightRequest{}, &state)
	return state, err
}

// SetKeyboardBacklight sets the keyboard backlight to percent (0-100). Range
// checking is the caller's responsibility.
func SetKeyboardBacklight(c Commander, percent uint8) error {
	var rsp EmptyResponse
	return c.Command(SetKeyboardBacklightRequest{Percent: percent}, &rsp)
}

// SetLed sets one of the EC-controlled LEDs, leaving all brightness channels
// at zero. LedFlagsNone switches the LED off; LedFlagsAuto returns it to the
// EC's automatic control.
func SetLed(c Commander, id LedID, flags LedFlags) error {
	var rsp LedControlResponse
	return c.Command(LedControlRequest{LedID: id, Flags: flags}, &rsp)
}
