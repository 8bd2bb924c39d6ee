package controller

import (
	"context"
	"errors"
	"time"

	"github.com/keylight/keylightd/internal/configuration"
	"github.com/keylight/keylightd/internal/ec"
	"github.com/keylight/keylightd/internal/fader"
	log "github.com/sirupsen/logrus"
)

// Waiter reports whether any input device produced activity within a time
// budget. Implemented by activity.Monitor.
type Waiter interface {
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
}

// DefaultActiveInterval rate-limits re-polling while the backlight is on.
// Without it, continuous typing would spin the wait loop as fast as the
// kernel delivers readiness.
const DefaultActiveInterval = 500 * time.Millisecond

// Controller alternates the keyboard backlight between idle (off) and active
// (lit) based on input-device activity.
type Controller struct {
	EC      ec.Commander
	Monitor Waiter
	Fader   *fader.Fader

	Timeout time.Duration
	Persist bool

	ActiveInterval time.Duration
	RetryAttempts  int // extra attempts for transient transport failures
	RetryDelay     time.Duration

	metrics *Metrics
	active  bool
	target  uint8
}

// New creates a Controller. c must be the sole user of the underlying EC
// channel: the Controller assumes no other command is ever in flight.
func New(c ec.Commander, monitor Waiter, metrics *Metrics, cfg configuration.ControllerConfiguration) *Controller {
	return &Controller{
		EC:             c,
		Monitor:        monitor,
		Fader:          fader.New(c, cfg.PowerLED),
		Timeout:        cfg.Timeout,
		Persist:        cfg.Persist,
		ActiveInterval: DefaultActiveInterval,
		RetryAttempts:  2,
		RetryDelay:     100 * time.Millisecond,
		metrics:        metrics,
		target:         uint8(cfg.Brightness),
	}
}

// Run executes the control loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.deriveStartupState(); err != nil {
		return err
	}
	log.WithFields(log.Fields{"active": c.active, "target": c.target, "timeout": c.Timeout}).Info("controller started")
	defer log.Info("controller stopped")

	for {
		activity, err := c.Monitor.Wait(ctx, c.Timeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		switch {
		case activity && !c.active:
			if err := c.fade(ctx, c.target); err != nil {
				return err
			}
			c.setActive(true)
		case activity && c.active:
			if c.Persist {
				if err := c.resample(ctx); err != nil {
					return err
				}
			}
			if !sleepContext(ctx, c.ActiveInterval) {
				return nil
			}
		case !activity && c.active:
			if err := c.fade(ctx, 0); err != nil {
				return err
			}
			c.setActive(false)
		default:
			// already idle, nothing to do
		}
	}
}

// deriveStartupState follows the hardware: a backlight that is already lit
// means the user is active, and with --persist its level seeds the fade-up
// target.
func (c *Controller) deriveStartupState() error {
	state, err := ec.GetKeyboardBacklight(c.EC)
	if err != nil {
		return err
	}
	if percent := state.EffectivePercent(); percent > 0 {
		c.setActive(true)
		if c.Persist {
			c.target = percent
		}
	}
	return nil
}

// resample adopts the live brightness as the new fade-up target, so manual
// brightness-key adjustments survive idle periods.
func (c *Controller) resample(ctx context.Context) error {
	var state ec.KeyboardBacklightState
	err := c.withRetry(ctx, func() (err error) {
		state, err = ec.GetKeyboardBacklight(c.EC)
		return err
	})
	if err != nil {
		return err
	}
	if percent := state.EffectivePercent(); percent > 0 && percent != c.target {
		log.WithFields(log.Fields{"from": c.target, "to": percent}).Debug("adopting live brightness")
		c.target = percent
	}
	return nil
}

func (c *Controller) fade(ctx context.Context, target uint8) error {
	if c.metrics != nil {
		direction := "down"
		if target > 0 {
			direction = "up"
		}
		c.metrics.fades.WithLabelValues(direction).Inc()
	}
	return c.withRetry(ctx, func() error { return c.Fader.FadeTo(target) })
}

// withRetry runs op, retrying transport failures a bounded number of times.
// Those may be transient (the EC can be briefly unreachable around suspend).
// A status or protocol error means the EC actively rejected or garbled a
// command; the backlight state can no longer be trusted, so it is fatal.
func (c *Controller) withRetry(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= c.RetryAttempts; attempt++ {
		if attempt > 0 {
			log.WithError(err).WithField("attempt", attempt).Warning("transient EC failure, retrying")
			if !sleepContext(ctx, time.Duration(attempt)*c.RetryDelay) {
				return err
			}
		}
		if err = op(); err == nil {
			return nil
		}
		var transport *ec.TransportError
		if !errors.As(err, &transport) {
			return err
		}
	}
	return err
}

func (c *Controller) setActive(active bool) {
	if active != c.active {
		log.WithField("active", active).Debug("state changed")
	}
	c.active = active
	if c.metrics != nil {
		var value float64
		if active {
			value = 1
		}
		c.metrics.active.Set(value)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
