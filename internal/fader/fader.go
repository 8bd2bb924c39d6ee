package fader

import (
	"time"

	"github.com/keylight/keylightd/internal/ec"
	log "github.com/sirupsen/logrus"
)

// DefaultStepDelay is the pause between brightness steps. It makes the ramp
// visually smooth and rate-limits writes to the EC.
const DefaultStepDelay = 3 * time.Millisecond

// Fader ramps the keyboard backlight between brightness levels, one percent
// at a time.
type Fader struct {
	EC        ec.Commander
	PowerLED  bool
	StepDelay time.Duration
}

// New creates a Fader. If powerLED is set, the fingerprint module's power LED
// follows the ramp as well.
func New(c ec.Commander, powerLED bool) *Fader {
	return &Fader{EC: c, PowerLED: powerLED, StepDelay: DefaultStepDelay}
}

// FadeTo ramps the keyboard backlight from its current level to target. A
// backlight that reports itself disabled counts as 0. If the backlight is
// already at target, no commands are issued. On error the ramp stops
// immediately, leaving the backlight at the last level written.
func (f *Fader) FadeTo(target uint8) error {
	state, err := ec.GetKeyboardBacklight(f.EC)
	if err != nil {
		return err
	}
	cur := state.EffectivePercent()
	log.WithFields(log.Fields{"current": cur, "target": target}).Debug("fading")

	for cur != target {
		if cur > target {
			cur--
		} else {
			cur++
		}

		if f.PowerLED {
			// The power LED cannot be dimmed from software, so it tracks the
			// ramp as a binary: off when the backlight reaches 0, back under
			// the EC's automatic control as soon as it leaves 0.
			switch cur {
			case 0:
				if err := ec.SetLed(f.EC, ec.LedPower, ec.LedFlagsNone); err != nil {
					return err
				}
			case 1:
				if err := ec.SetLed(f.EC, ec.LedPower, ec.LedFlagsAuto); err != nil {
					return err
				}
			}
		}

		if err := ec.SetKeyboardBacklight(f.EC, cur); err != nil {
			return err
		}

		time.Sleep(f.StepDelay)
	}
	return nil
}
