package roverkit

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/hubertat/roverkit/drivers"
)

// DefaultWatchdogTimeout is the longest the keep-alive pin may stay low
// before the watchdog circuit cuts PWM output power.
const DefaultWatchdogTimeout = 250 * time.Millisecond

// DefaultPulseWidth is the length of a single keep-alive high pulse.
const DefaultPulseWidth = time.Millisecond

// Watchdog feeds the external watchdog circuit through one IO expander
// pin. The circuit must see high pulses more often than Timeout or it
// disables PWM output power; Pause keeps that contract during long
// waits.
type Watchdog struct {
	driver drivers.IoDriver
	pin    uint8

	Timeout    time.Duration
	PulseWidth time.Duration

	clk clock.Clock
}

func NewWatchdog(driver drivers.IoDriver, pin uint8) *Watchdog {
	return &Watchdog{
		driver:     driver,
		pin:        pin,
		Timeout:    DefaultWatchdogTimeout,
		PulseWidth: DefaultPulseWidth,
		clk:        clock.New(),
	}
}

func (wd *Watchdog) Pin() uint8 {
	return wd.pin
}

// Pulse drives the keep-alive pin high for the given duration, then
// low. A non-positive duration uses PulseWidth.
func (wd *Watchdog) Pulse(duration time.Duration) error {
	if duration <= 0 {
		duration = wd.PulseWidth
	}

	err := wd.driver.WritePin(wd.pin, true)
	if err != nil {
		return errors.Wrap(err, "watchdog pulse failed")
	}
	wd.clk.Sleep(duration)
	err = wd.driver.WritePin(wd.pin, false)
	if err != nil {
		return errors.Wrap(err, "watchdog pulse failed")
	}

	return nil
}

// Pause sleeps for the given duration while keeping the watchdog fed:
// the wait is subdivided into cycles no longer than Timeout, each
// starting with a PulseWidth high pulse, and ends with a final pulse.
func (wd *Watchdog) Pause(duration time.Duration) error {
	if duration <= 0 {
		return wd.Pulse(wd.PulseWidth)
	}

	pauseLen := duration
	if pauseLen > wd.Timeout {
		pauseLen = wd.Timeout
	}

	lowDuration := pauseLen - wd.PulseWidth
	cycles := int(duration / pauseLen)
	remainder := duration - wd.PulseWidth - time.Duration(cycles)*pauseLen

	for i := 0; i < cycles; i++ {
		err := wd.Pulse(wd.PulseWidth)
		if err != nil {
			return err
		}
		wd.clk.Sleep(lowDuration)
	}

	err := wd.Pulse(wd.PulseWidth)
	if err != nil {
		return err
	}
	if remainder > 0 {
		wd.clk.Sleep(remainder)
	}

	return nil
}
