package drivers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
)

const gpioDriverName = "gpio"
const gpioPinCount = 28

// GpIO drives the Raspberry Pi header pins (BCM numbering). Auxiliary
// driver for IO wired next to the HAT rather than through the expander.
type GpIO struct {
	outputs map[uint8]bool

	isReady bool
}

func (gp *GpIO) Setup(ctx context.Context) error {
	err := rpio.Open()
	if err != nil {
		return errors.Wrap(err, "failed to open gpio memory range")
	}

	gp.outputs = make(map[uint8]bool)
	gp.isReady = true
	return nil
}

func (gp *GpIO) ConfigurePin(pin uint8, output bool, pullUpOrHigh bool) error {
	if pin >= gpioPinCount {
		return errors.Errorf("pin %d out of range (gpio has %d pins)", pin, gpioPinCount)
	}
	if !gp.isReady {
		return errors.Errorf("gpio driver not ready")
	}

	p := rpio.Pin(pin)
	if output {
		p.Output()
		if pullUpOrHigh {
			p.High()
		} else {
			p.Low()
		}
		gp.outputs[pin] = true
	} else {
		p.Input()
		if pullUpOrHigh {
			p.PullUp()
		} else {
			p.PullOff()
		}
		delete(gp.outputs, pin)
	}

	return nil
}

func (gp *GpIO) ReadPin(pin uint8) (bool, error) {
	if pin >= gpioPinCount {
		return false, errors.Errorf("pin %d out of range (gpio has %d pins)", pin, gpioPinCount)
	}

	return rpio.Pin(pin).Read() == rpio.High, nil
}

func (gp *GpIO) WritePin(pin uint8, state bool) error {
	if pin >= gpioPinCount {
		return errors.Errorf("pin %d out of range (gpio has %d pins)", pin, gpioPinCount)
	}

	if state {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}

	return nil
}

func (gp *GpIO) PinCount() int {
	return gpioPinCount
}

func (gp *GpIO) String() string {
	return gpioDriverName
}

func (gp *GpIO) IsReady() bool {
	return gp.isReady
}

func (gp *GpIO) Close() error {
	gp.isReady = false
	for pin := range gp.outputs {
		rpio.Pin(pin).Low()
	}
	return rpio.Close()
}
