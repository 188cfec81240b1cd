package roverkit

import (
	"context"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"github.com/hubertat/roverkit/drivers"
)

// Length of an always on pulse. The pulse API takes 16 bit values, the
// PWM hardware resolution is 12 bit.
const maxPulseLength = 0xffff

const pwmChannelCount = 16
const maxServoChannel = 11

const defaultPwmFrequency = 50
const defaultServoMinPulse = 1680
const defaultServoMaxPulse = 8000
const defaultServoRange = 180
const defaultWatchdogPin = 7
const defaultMotorPowerLimiting = 100

// Motor supply voltage sensing: the ADC measures through a 1.24K/10K
// resistor divider referenced to the Pi supply rail.
const adcSupplyVolts = 5.2
const adcFullScale = 0xfff
const voltageDividerRatio = 8.0645
const defaultVoltageFloor = 0.24
const defaultVoltageMultiplier = 1.1

// MotorChannels is the PWM channel pair wired to one motor driver.
// ChannelB drives forward, ChannelA reverse. The indices depend on the
// board revision.
type MotorChannels struct {
	ChannelA int
	ChannelB int
}

// Board is the control façade for the robot controller HAT: a PCA9685
// PWM chip and an MCP23017 IO expander on the I2C bus, an ADC for motor
// supply voltage sensing, and a watchdog circuit fed from one expander
// pin. The board owns the bus; nothing else may touch the devices
// concurrently.
type Board struct {
	Name string

	Pca9685  *drivers.Pca9685
	MockPwm  *drivers.MockPwmDriver
	Mcp23017 *drivers.McpIO
	MockIo   *drivers.MockIoDriver
	Gpio     *drivers.GpIO
	Adc      *drivers.Mcp3221

	PwmFrequency  uint16
	ServoMinPulse uint16
	ServoMaxPulse uint16
	ServoRange    float64
	WatchdogPin   *int
	Motor1        MotorChannels
	Motor2        MotorChannels

	motorPowerLimiting float64
	voltageFloor       float64
	voltageMultiplier  float64

	channelPulseLengths [pwmChannelCount]uint16

	pwm       drivers.PwmDriver
	ioe       drivers.IoDriver
	adc       drivers.VoltageSensor
	watchdog  *Watchdog
	ioDrivers map[string]drivers.IoDriver
}

func (b *Board) applyDefaults() {
	if b.PwmFrequency == 0 {
		b.PwmFrequency = defaultPwmFrequency
	}
	if b.ServoMinPulse == 0 {
		b.ServoMinPulse = defaultServoMinPulse
	}
	if b.ServoMaxPulse == 0 {
		b.ServoMaxPulse = defaultServoMaxPulse
	}
	if b.ServoRange == 0 {
		b.ServoRange = defaultServoRange
	}
	if b.WatchdogPin == nil {
		pin := defaultWatchdogPin
		b.WatchdogPin = &pin
	}
	if b.Motor1.ChannelA == 0 && b.Motor1.ChannelB == 0 {
		b.Motor1 = MotorChannels{ChannelA: 12, ChannelB: 13}
	}
	if b.Motor2.ChannelA == 0 && b.Motor2.ChannelB == 0 {
		b.Motor2 = MotorChannels{ChannelA: 14, ChannelB: 15}
	}

	b.motorPowerLimiting = defaultMotorPowerLimiting
	b.voltageFloor = defaultVoltageFloor
	b.voltageMultiplier = defaultVoltageMultiplier
}

// InitDrivers applies config defaults, sets up every configured driver
// and initialises the watchdog pin.
func (b *Board) InitDrivers(ctx context.Context) error {
	b.applyDefaults()

	switch {
	case b.Pca9685 != nil:
		b.pwm = b.Pca9685
	case b.MockPwm != nil:
		b.pwm = b.MockPwm
	default:
		return errors.New("no pwm driver configured")
	}

	err := b.pwm.Setup(ctx, b.PwmFrequency)
	if err != nil {
		return errors.Wrapf(err, "failed to setup %s driver", b.pwm)
	}

	switch {
	case b.Mcp23017 != nil:
		b.ioe = b.Mcp23017
	case b.MockIo != nil:
		b.ioe = b.MockIo
	default:
		return errors.New("no io expander driver configured")
	}

	b.ioDrivers = map[string]drivers.IoDriver{b.ioe.String(): b.ioe}
	if b.Gpio != nil {
		b.ioDrivers[b.Gpio.String()] = b.Gpio
	}

	for _, driver := range b.ioDrivers {
		err = driver.Setup(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to setup %s driver", driver)
		}
	}

	if b.Adc != nil {
		b.adc = b.Adc
		err = b.adc.Setup(ctx)
		if err != nil {
			return errors.Wrapf(err, "failed to setup %s driver", b.adc)
		}
	}

	if *b.WatchdogPin >= 0 && *b.WatchdogPin < b.ioe.PinCount() {
		err = b.ioe.ConfigurePin(uint8(*b.WatchdogPin), true, false)
		if err != nil {
			return errors.Wrap(err, "failed to init watchdog pin")
		}
		b.watchdog = NewWatchdog(b.ioe, uint8(*b.WatchdogPin))
	}

	return nil
}

// SetPulseLength sets any PWM channel. All code setting PWM outputs
// goes through here so the hardware write happens in one place,
// including storing what value each channel was set to.
func (b *Board) SetPulseLength(channel int, pulse uint16) error {
	if channel < 0 || channel >= pwmChannelCount {
		log.Warnf("attempt to set pulse length using an invalid channel %d", channel)
		return nil
	}

	err := b.pwm.SetChannelPulse(channel, pulse)
	if err != nil {
		return errors.Wrapf(err, "failed to write pulse to channel %d", channel)
	}
	b.channelPulseLengths[channel] = pulse

	return nil
}

// SetPercentageOn sets the percentage of time a PWM channel is on per
// duty cycle. Percent outside [0,100] is clamped.
func (b *Board) SetPercentageOn(channel int, percent float64) error {
	var pulse uint16
	switch {
	case percent < 0:
		pulse = 0
	case percent > 100:
		pulse = maxPulseLength
	default:
		pulse = uint16(math.Round(percent * maxPulseLength / 100))
	}

	return b.SetPulseLength(channel, pulse)
}

// SetConstantOn sets a channel to completely on (for logical high).
func (b *Board) SetConstantOn(channel int) error {
	return b.SetPulseLength(channel, maxPulseLength)
}

// AllOff sets every PWM channel off.
func (b *Board) AllOff() error {
	for channel := 0; channel < pwmChannelCount; channel++ {
		err := b.SetPulseLength(channel, 0)
		if err != nil {
			return err
		}
	}
	return nil
}

// SetServoPosition sets the position of a servo in degrees. Servos live
// on channels 0-11; a channel outside that range or a computed pulse
// outside the configured min/max is reported and skipped, not clamped.
func (b *Board) SetServoPosition(channel int, degrees float64) error {
	minp := float64(b.ServoMinPulse)
	maxp := float64(b.ServoMaxPulse)

	pulse := math.Round((maxp-minp)*degrees/b.ServoRange + minp)

	if pulse < minp || pulse > maxp {
		log.Warnf("calculated servo pulse %.0f is outside supported range of %.0f to %.0f", pulse, minp, maxp)
		return nil
	}
	if channel < 0 || channel > maxServoChannel {
		log.Warnf("attempt to set servo position using an invalid channel %d", channel)
		return nil
	}

	log.Debugf("setting servo %d pulse to %.0f", channel, pulse)
	return b.SetPulseLength(channel, uint16(pulse))
}

// SetMotorPowerLimiting limits maximum motor power to a percentage of
// the supplied voltage, via PWM limiting. Useful for speed limiting and
// for protecting over-volted motors.
func (b *Board) SetMotorPowerLimiting(percentage float64) {
	switch {
	case percentage <= 0:
		b.motorPowerLimiting = 0
	case percentage > 100:
		b.motorPowerLimiting = 100
	default:
		b.motorPowerLimiting = percentage
	}
}

func (b *Board) MotorPowerLimiting() float64 {
	return b.motorPowerLimiting
}

// SetMotorPower sets the direction and power of a motor in the range
// -100 to +100. Power is scaled down by the motor power limiting
// setting in place when the method is called; the sign selects the
// direction channel, the opposite channel is zeroed.
func (b *Board) SetMotorPower(motor int, percentPower float64) error {
	var channels MotorChannels
	switch motor {
	case 1:
		channels = b.Motor1
	case 2:
		channels = b.Motor2
	default:
		log.Warnf("attempt to set power of unknown motor %d", motor)
		return nil
	}

	scaledPower := percentPower * b.motorPowerLimiting / 100

	powerChannel := channels.ChannelB
	zeroChannel := channels.ChannelA
	if scaledPower < 0 {
		powerChannel = channels.ChannelA
		zeroChannel = channels.ChannelB
	}

	err := b.SetPercentageOn(zeroChannel, 0)
	if err != nil {
		return err
	}
	return b.SetPercentageOn(powerChannel, math.Abs(scaledPower))
}

// SetMotorsPower updates the speeds of both motors in one call.
func (b *Board) SetMotorsPower(motor1Power, motor2Power float64) error {
	err := b.SetMotorPower(1, motor1Power)
	if err != nil {
		return err
	}
	return b.SetMotorPower(2, motor2Power)
}

// PulseWatchdog sends a single keep-alive pulse to the watchdog
// circuit. A non-positive duration uses the watchdog pulse width.
func (b *Board) PulseWatchdog(duration time.Duration) error {
	if b.watchdog == nil {
		log.Warnf("watchdog pin not configured, skipping pulse")
		return nil
	}
	return b.watchdog.Pulse(duration)
}

// WatchdogPause pauses execution while keeping the watchdog pulses
// running, so the board PWM output stays active through long waits.
func (b *Board) WatchdogPause(duration time.Duration) error {
	if b.watchdog == nil {
		log.Warnf("watchdog pin not configured, skipping pause")
		return nil
	}
	return b.watchdog.Pause(duration)
}

// Watchdog returns the keep-alive timer, nil when no watchdog pin is
// configured.
func (b *Board) Watchdog() *Watchdog {
	return b.watchdog
}

// ConfigureIOPin configures any expander pin as output (pullUpOrHigh is
// the initial level) or input (pullUpOrHigh enables the internal
// pull-up, otherwise the input floats).
func (b *Board) ConfigureIOPin(pin uint8, output bool, pullUpOrHigh bool) error {
	return b.ioe.ConfigurePin(pin, output, pullUpOrHigh)
}

// ReadIOPin returns the logic state of any expander pin, whether
// configured as input or output.
func (b *Board) ReadIOPin(pin uint8) (bool, error) {
	return b.ioe.ReadPin(pin)
}

// SetIOPin sets the logic state of an expander pin configured as output.
func (b *Board) SetIOPin(pin uint8, state bool) error {
	return b.ioe.WritePin(pin, state)
}

// MotorVoltage reads the motor supply voltage. The 12-bit ADC sample is
// referenced to the Pi supply, scaled by the resistor divider and
// corrected by the calibratable floor/multiplier pair.
func (b *Board) MotorVoltage() (float64, error) {
	if b.adc == nil {
		return 0, errors.New("voltage sensor not configured")
	}

	sample, err := b.adc.ReadSample()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read motor voltage")
	}

	adcVoltage := adcSupplyVolts * float64(sample) / adcFullScale
	return (adcVoltage*voltageDividerRatio - b.voltageFloor) * b.voltageMultiplier, nil
}

// SetVoltageCalibration compensates for the difference between ADC
// calculated and measured voltage on a specific board.
func (b *Board) SetVoltageCalibration(floor, multiplier float64) {
	b.voltageFloor = floor
	b.voltageMultiplier = multiplier
}

// ChannelPulseLengths returns the last pulse written to each channel.
func (b *Board) ChannelPulseLengths() [pwmChannelCount]uint16 {
	return b.channelPulseLengths
}

func (b *Board) PrintStatus(writer io.Writer) {
	fmt.Fprintln(writer)
	fmt.Fprintln(writer, "=== board drivers ===")
	if b.pwm == nil {
		fmt.Fprintln(writer, "| drivers not initialised")
		return
	}
	fmt.Fprintf(writer, "| pwm: %s (%d channels @ %d Hz)\n", b.pwm, b.pwm.Channels(), b.PwmFrequency)
	for driverName, driver := range b.ioDrivers {
		fmt.Fprintf(writer, "| io: %s (%d pins)\n", driverName, driver.PinCount())
	}
	if b.adc != nil {
		fmt.Fprintf(writer, "| adc: %s\n", b.adc)
	}
	if b.watchdog != nil {
		fmt.Fprintf(writer, "| watchdog: expander pin %d, timeout %s\n", b.watchdog.Pin(), b.watchdog.Timeout)
	}
	fmt.Fprintln(writer, "=== channel pulse lengths ===")
	for channel, pulse := range b.channelPulseLengths {
		fmt.Fprintf(writer, "| %2d: %5d\n", channel, pulse)
	}
	fmt.Fprintln(writer, "-----------------------------")
	fmt.Fprintln(writer)
}

// Close turns every PWM channel off and closes all drivers.
func (b *Board) Close() (err error) {
	if b.pwm != nil && b.pwm.IsReady() {
		offErr := b.AllOff()
		if offErr != nil {
			err = errors.Wrap(offErr, "failed to zero pwm channels")
		}
		closeErr := b.pwm.Close()
		if closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close pwm driver")
		}
	}

	for _, driver := range b.ioDrivers {
		if driver != nil && driver.IsReady() {
			closeErr := driver.Close()
			if closeErr != nil {
				err = errors.Wrap(closeErr, "failed to close io driver")
			}
		}
	}

	if b.adc != nil && b.adc.IsReady() {
		closeErr := b.adc.Close()
		if closeErr != nil {
			err = errors.Wrap(closeErr, "failed to close adc driver")
		}
	}

	return
}
