package testutils

import (
	"github.com/keylight/keylightd/internal/ec"
)

// FakeEC implements ec.Commander against an in-memory backlight, recording
// every command it receives.
type FakeEC struct {
	Percent uint8
	Enabled bool

	Backlight []uint8       // percents written, in order
	Leds      []ec.LedFlags // LED flag writes, in order
	Calls     int

	FailAt   int   // fail the n-th command (1-based) with FailWith
	FailWith error // cleared after firing unless Sticky
	Sticky   bool
}

var _ ec.Commander = &FakeEC{}

func (f *FakeEC) Command(req ec.Request, rsp ec.Response) error {
	f.Calls++
	if f.FailAt != 0 && f.Calls >= f.FailAt {
		err := f.FailWith
		if !f.Sticky {
			f.FailAt = 0
		}
		return err
	}

	switch r := req.(type) {
	case ec.GetKeyboardBacklightRequest:
		state := rsp.(*ec.KeyboardBacklightState)
		state.Percent = f.Percent
		state.Enabled = f.Enabled
	case ec.SetKeyboardBacklightRequest:
		f.Percent = r.Percent
		f.Enabled = true
		f.Backlight = append(f.Backlight, r.Percent)
	case ec.LedControlRequest:
		f.Leds = append(f.Leds, r.Flags)
	}
	return nil
}
