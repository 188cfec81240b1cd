package drivers

import (
	"context"

	"github.com/pkg/errors"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"
)

const adcDriverName = "mcp3221"

const defaultAdcAddress = 0x4D

// VoltageSensor reads raw samples from an analog-digital converter.
type VoltageSensor interface {
	Setup(ctx context.Context) error
	ReadSample() (uint16, error)
	Close() error
	String() string
	IsReady() bool
}

// Mcp3221 reads the 12-bit ADC used for motor supply voltage sensing.
// The chip has no register map: a plain 2-byte read returns the current
// sample, high byte first.
type Mcp3221 struct {
	device *i2c.Dev
	bus    i2c.BusCloser

	isReady bool

	BusName string
	Address uint16
}

func (adc *Mcp3221) Setup(ctx context.Context) (err error) {
	if adc.Address == 0 {
		adc.Address = defaultAdcAddress
	}

	if adc.device != nil {
		adc.isReady = true
		return nil
	}

	if _, err = host.Init(); err != nil {
		return errors.Wrap(err, "failed to init periph host")
	}

	adc.bus, err = i2creg.Open(adc.BusName)
	if err != nil {
		return errors.Wrapf(err, "failed to open i2c bus (%s)", adc.BusName)
	}

	adc.device = &i2c.Dev{Bus: adc.bus, Addr: adc.Address}
	adc.isReady = true
	return nil
}

func (adc *Mcp3221) ReadSample() (uint16, error) {
	if !adc.isReady {
		return 0, errors.Errorf("mcp3221 driver not ready")
	}

	readbuf := make([]byte, 2)
	if err := adc.device.Tx(nil, readbuf); err != nil {
		return 0, errors.Wrapf(err, "failed to read adc at 0x%X", adc.Address)
	}

	return uint16(readbuf[0])<<8 | uint16(readbuf[1]), nil
}

func (adc *Mcp3221) String() string {
	return adcDriverName
}

func (adc *Mcp3221) IsReady() bool {
	return adc.isReady
}

func (adc *Mcp3221) Close() error {
	adc.isReady = false
	if adc.bus == nil {
		return nil
	}
	return adc.bus.Close()
}
