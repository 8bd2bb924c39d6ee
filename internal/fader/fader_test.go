package fader_test

import (
	"testing"

	"github.com/keylight/keylightd/internal/ec"
	"github.com/keylight/keylightd/internal/fader"
	"github.com/keylight/keylightd/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFader(fake *testutils.FakeEC, powerLED bool) *fader.Fader {
	f := fader.New(fake, powerLED)
	f.StepDelay = 0
	return f
}

func TestFader_FadeTo_Up(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 0, Enabled: true}
	f := newFader(fake, false)

	require.NoError(t, f.FadeTo(30))

	require.Len(t, fake.Backlight, 30)
	for i, percent := range fake.Backlight {
		assert.Equal(t, uint8(i+1), percent)
	}
	assert.Empty(t, fake.Leds)
}

func TestFader_FadeTo_Down(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 50, Enabled: true}
	f := newFader(fake, false)

	require.NoError(t, f.FadeTo(0))

	require.Len(t, fake.Backlight, 50)
	for i, percent := range fake.Backlight {
		assert.Equal(t, uint8(49-i), percent)
	}
}

func TestFader_FadeTo_NoOp(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 30, Enabled: true}
	f := newFader(fake, true)

	require.NoError(t, f.FadeTo(30))

	assert.Empty(t, fake.Backlight)
	assert.Empty(t, fake.Leds)
	assert.Equal(t, 1, fake.Calls)
}

func TestFader_FadeTo_DisabledCountsAsZero(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 80, Enabled: false}
	f := newFader(fake, false)

	require.NoError(t, f.FadeTo(3))

	assert.Equal(t, []uint8{1, 2, 3}, fake.Backlight)
}

func TestFader_FadeTo_PowerLEDDown(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 50, Enabled: true}
	f := newFader(fake, true)

	require.NoError(t, f.FadeTo(0))

	// the ramp passes through 1 (LED back to auto) before reaching 0 (LED off)
	require.Len(t, fake.Backlight, 50)
	assert.Equal(t, []ec.LedFlags{ec.LedFlagsAuto, ec.LedFlagsNone}, fake.Leds)
}

func TestFader_FadeTo_PowerLEDUp(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 0, Enabled: false}
	f := newFader(fake, true)

	require.NoError(t, f.FadeTo(30))

	// one LED-auto command, on the step that leaves 0
	require.Len(t, fake.Backlight, 30)
	assert.Equal(t, []ec.LedFlags{ec.LedFlagsAuto}, fake.Leds)
}

func TestFader_FadeTo_DownToOne(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 5, Enabled: true}
	f := newFader(fake, true)

	require.NoError(t, f.FadeTo(1))

	// ramping down to 1 re-asserts automatic LED control on the final step
	assert.Equal(t, []uint8{4, 3, 2, 1}, fake.Backlight)
	assert.Equal(t, []ec.LedFlags{ec.LedFlagsAuto}, fake.Leds)
}

func TestFader_FadeTo_AbortsOnError(t *testing.T) {
	fake := &testutils.FakeEC{
		Percent: 0, Enabled: true,
		FailAt:   5, // get + 3 sets succeed, 4th set fails
		FailWith: &ec.StatusError{Command: 0x0023, Status: ec.StatusAccessDenied},
	}
	f := newFader(fake, false)

	err := f.FadeTo(30)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*ec.StatusError))
	assert.Equal(t, []uint8{1, 2, 3}, fake.Backlight)
}
