package controller_test

import (
	"context"
	"testing"
	"time"

	"github.com/keylight/keylightd/internal/configuration"
	"github.com/keylight/keylightd/internal/controller"
	"github.com/keylight/keylightd/internal/ec"
	"github.com/keylight/keylightd/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// scriptedMonitor replays a fixed sequence of wait outcomes, then cancels the
// context so the control loop terminates.
type scriptedMonitor struct {
	results []bool
	cancel  context.CancelFunc
}

func (s *scriptedMonitor) Wait(ctx context.Context, _ time.Duration) (bool, error) {
	if len(s.results) == 0 {
		s.cancel()
		return false, ctx.Err()
	}
	next := s.results[0]
	s.results = s.results[1:]
	return next, nil
}

func newController(t *testing.T, fake *testutils.FakeEC, results []bool, cfg configuration.ControllerConfiguration) (*controller.Controller, context.Context) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	monitor := &scriptedMonitor{results: results, cancel: cancel}
	c := controller.New(fake, monitor, controller.NewMetrics(), cfg)
	c.Fader.StepDelay = 0
	c.ActiveInterval = time.Millisecond
	c.RetryDelay = 0
	return c, ctx
}

func TestController_IdleActiveIdle(t *testing.T) {
	fake := &testutils.FakeEC{}
	cfg := configuration.ControllerConfiguration{Brightness: 30, Timeout: 10 * time.Second}

	// activity, then a timeout
	c, ctx := newController(t, fake, []bool{true, false}, cfg)
	require.NoError(t, c.Run(ctx))

	// fade up 0->30, fade down 30->0
	require.Len(t, fake.Backlight, 60)
	assert.Equal(t, uint8(1), fake.Backlight[0])
	assert.Equal(t, uint8(30), fake.Backlight[29])
	assert.Equal(t, uint8(29), fake.Backlight[30])
	assert.Equal(t, uint8(0), fake.Backlight[59])
}

func TestController_RepeatedActivity(t *testing.T) {
	fake := &testutils.FakeEC{}
	cfg := configuration.ControllerConfiguration{Brightness: 30, Timeout: 10 * time.Second}

	c, ctx := newController(t, fake, []bool{true, true, true}, cfg)
	require.NoError(t, c.Run(ctx))

	// only the first activity triggers a fade
	assert.Len(t, fake.Backlight, 30)
}

func TestController_IdleTimeoutWhileIdle(t *testing.T) {
	fake := &testutils.FakeEC{}
	cfg := configuration.ControllerConfiguration{Brightness: 30, Timeout: 10 * time.Second}

	c, ctx := newController(t, fake, []bool{false, false}, cfg)
	require.NoError(t, c.Run(ctx))

	assert.Empty(t, fake.Backlight)
}

func TestController_PowerLED(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 50, Enabled: true}
	cfg := configuration.ControllerConfiguration{Brightness: 50, Timeout: 10 * time.Second, PowerLED: true}

	// starts active (backlight already lit), then times out
	c, ctx := newController(t, fake, []bool{false}, cfg)
	require.NoError(t, c.Run(ctx))

	require.Len(t, fake.Backlight, 50)
	assert.Equal(t, uint8(0), fake.Backlight[49])
	assert.Equal(t, []ec.LedFlags{ec.LedFlagsAuto, ec.LedFlagsNone}, fake.Leds)
}

func TestController_StartupStateFromHardware(t *testing.T) {
	fake := &testutils.FakeEC{Percent: 40, Enabled: true}
	cfg := configuration.ControllerConfiguration{Brightness: 30, Timeout: 10 * time.Second}

	// already active: renewed activity must not trigger a fade
	c, ctx := newController(t, fake, []bool{true}, cfg)
	require.NoError(t, c.Run(ctx))

	assert.Empty(t, fake.Backlight)
}

func TestController_Persist(t *testing.T) {
	fake := &testutils.FakeEC{}
	cfg := configuration.ControllerConfiguration{Brightness: 30, Timeout: 10 * time.Second, Persist: true}

	// fade up to 30, user turns it up to 80, tick resamples, idle, activity
	c, ctx := newController(t, fake, []bool{true, true, false, true}, cfg)

	monitor := c.Monitor.(*scriptedMonitor)

	// bump the brightness after the first fade completes, before the resample
	resampled := false
	c.Monitor = waiterFunc(func(ctx context.Context, timeout time.Duration) (bool, error) {
		if len(fake.Backlight) >= 30 && !resampled {
			resampled = true
			fake.Percent = 80
			fake.Enabled = true
		}
		return monitor.Wait(ctx, timeout)
	})

	require.NoError(t, c.Run(ctx))

	// 30 up, 80 down, 80 up again to the resampled target
	require.Len(t, fake.Backlight, 30+80+80)
	assert.Equal(t, uint8(80), fake.Backlight[len(fake.Backlight)-1])
}

type waiterFunc func(ctx context.Context, timeout time.Duration) (bool, error)

func (f waiterFunc) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	return f(ctx, timeout)
}

func TestController_TransientTransportErrorIsRetried(t *testing.T) {
	fake := &testutils.FakeEC{
		FailAt:   3, // fail one command mid-fade
		FailWith: &ec.TransportError{Op: "ioctl", Err: unix.EBUSY},
	}
	cfg := configuration.ControllerConfiguration{Brightness: 10, Timeout: 10 * time.Second}

	c, ctx := newController(t, fake, []bool{true}, cfg)
	require.NoError(t, c.Run(ctx))

	// the retried fade resumes from the last written percent and completes
	assert.Equal(t, uint8(10), fake.Backlight[len(fake.Backlight)-1])
}

func TestController_StatusErrorIsFatal(t *testing.T) {
	fake := &testutils.FakeEC{
		FailAt:   3,
		FailWith: &ec.StatusError{Command: 0x0023, Status: ec.StatusAccessDenied},
		Sticky:   true,
	}
	cfg := configuration.ControllerConfiguration{Brightness: 10, Timeout: 10 * time.Second}

	c, ctx := newController(t, fake, []bool{true}, cfg)
	err := c.Run(ctx)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*ec.StatusError))
}

func TestController_TransportErrorExhaustsRetries(t *testing.T) {
	fake := &testutils.FakeEC{
		FailAt:   1,
		FailWith: &ec.TransportError{Op: "ioctl", Err: unix.ENODEV},
		Sticky:   true,
	}
	cfg := configuration.ControllerConfiguration{Brightness: 10, Timeout: 10 * time.Second}

	c, ctx := newController(t, fake, []bool{true}, cfg)
	err := c.Run(ctx)
	require.Error(t, err)
	assert.ErrorAs(t, err, new(*ec.TransportError))
}
