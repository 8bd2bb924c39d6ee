package activity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// Monitor owns a fixed set of input devices and answers one question: did any
// of them become readable within a time budget? It never reads the queued
// events. poll(2) is level-triggered, so readability alone is a reliable
// activity signal and the kernel's event queue stays untouched.
type Monitor struct {
	devices []Device
	fds     []unix.PollFd
}

// pollChunk caps a single poll(2) call so that context cancellation is
// observed even during an indefinite wait.
const pollChunk = 500 * time.Millisecond

// NewMonitor creates a Monitor over devices. The Monitor takes ownership of
// the device file descriptors.
func NewMonitor(devices []Device) *Monitor {
	fds := make([]unix.PollFd, len(devices))
	for i, device := range devices {
		fds[i] = unix.PollFd{Fd: int32(device.fd), Events: unix.POLLIN}
	}
	return &Monitor{devices: devices, fds: fds}
}

// Wait blocks until at least one device is readable (true), the timeout
// expires (false), or ctx is cancelled. A timeout of zero or less waits
// indefinitely.
func (m *Monitor) Wait(ctx context.Context, timeout time.Duration) (bool, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		wait := pollChunk
		if timeout > 0 {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return false, nil
			}
			if remaining < wait {
				wait = remaining
			}
		}

		for i := range m.fds {
			m.fds[i].Revents = 0
		}
		n, err := unix.Poll(m.fds, int((wait+time.Millisecond-1)/time.Millisecond))
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return false, fmt.Errorf("poll: %w", err)
		}
		if n > 0 {
			return true, nil
		}
	}
}

// Close releases all device file descriptors.
func (m *Monitor) Close() error {
	var err error
	for _, device := range m.devices {
		if e := unix.Close(device.fd); e != nil && err == nil {
			err = e
		}
	}
	return err
}
