package drivers

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/pca9685"
	"periph.io/x/host/v3"
)

const pcaDriverName = "pca9685"
const pcaChannelCount = 16

const defaultPcaAddress = 0x40

// Pca9685 drives the 16-channel PWM chip. BusName selects the I2C bus
// ("" opens the first available one, "1" is the usual Pi bus).
type Pca9685 struct {
	device *pca9685.Dev
	bus    i2c.BusCloser

	isReady bool

	BusName string
	Address uint16
}

func (pca *Pca9685) Setup(ctx context.Context, frequency uint16) (err error) {
	if pca.Address == 0 {
		pca.Address = defaultPcaAddress
	}

	if _, err = host.Init(); err != nil {
		return errors.Wrap(err, "failed to init periph host")
	}

	pca.bus, err = i2creg.Open(pca.BusName)
	if err != nil {
		return errors.Wrapf(err, "failed to open i2c bus (%s)", pca.BusName)
	}

	pca.device, err = pca9685.NewI2C(pca.bus, pca.Address)
	if err != nil {
		return errors.Wrapf(err, "failed to init pca9685 at 0x%X", pca.Address)
	}

	err = pca.device.SetPwmFreq(physic.Frequency(frequency) * physic.Hertz)
	if err != nil {
		return errors.Wrapf(err, "failed to set pwm frequency to %d Hz", frequency)
	}

	pca.isReady = true
	return nil
}

func (pca *Pca9685) SetChannelPulse(channel int, pulse uint16) error {
	if channel < 0 || channel >= pcaChannelCount {
		return errors.Errorf("channel %d out of range (pca9685 has %d channels)", channel, pcaChannelCount)
	}
	if !pca.isReady {
		return errors.Errorf("pca9685 driver not ready")
	}

	err := pca.device.SetPwm(channel, 0, pulseToTicks(pulse))
	if err != nil {
		return errors.Wrapf(err, "failed to set pwm on channel %d", channel)
	}

	return nil
}

// pulseToTicks maps the 16-bit pulse API onto the chip's 12-bit counter.
func pulseToTicks(pulse uint16) gpio.Duty {
	return gpio.Duty(pulse >> 4)
}

func (pca *Pca9685) Channels() int {
	return pcaChannelCount
}

func (pca *Pca9685) String() string {
	return pcaDriverName
}

func (pca *Pca9685) IsReady() bool {
	return pca.isReady
}

func (pca *Pca9685) Close() (err error) {
	if !pca.isReady {
		return nil
	}

	pca.isReady = false
	err = pca.device.SetAllPwm(0, 0)
	if closeErr := pca.bus.Close(); closeErr != nil {
		err = errors.Wrap(closeErr, "failed to close i2c bus")
	}
	return err
}
