package drivers

import (
	"context"

	"github.com/pkg/errors"
	"github.com/racerxdl/go-mcp23017"
)

const mcpioDriverName = "mcpio"
const mcpioPinCount = 16

// McpIO drives the MCP23017 16-pin IO expander over I2C. DevNo is the
// device index on the bus (chip address 0x20 + DevNo).
type McpIO struct {
	device *mcp23017.Device

	outputs map[uint8]bool
	inputs  map[uint8]bool
	isReady bool

	BusNo uint8
	DevNo uint8
}

func (mcp *McpIO) Setup(ctx context.Context) (err error) {
	mcp.device, err = mcp23017.Open(mcp.BusNo, mcp.DevNo)
	if err != nil {
		return errors.Wrapf(err, "failed to open mcp23017 (bus %d dev %d)", mcp.BusNo, mcp.DevNo)
	}

	mcp.outputs = make(map[uint8]bool)
	mcp.inputs = make(map[uint8]bool)
	mcp.isReady = true

	return nil
}

func (mcp *McpIO) ConfigurePin(pin uint8, output bool, pullUpOrHigh bool) (err error) {
	if pin >= mcpioPinCount {
		return errors.Errorf("pin %d out of range (mcpio has %d pins)", pin, mcpioPinCount)
	}
	if !mcp.isReady {
		return errors.Errorf("mcpio driver not ready")
	}

	if output {
		err = mcp.device.PinMode(pin, mcp23017.OUTPUT)
		if err != nil {
			return errors.Wrapf(err, "failed to set pin %d as output", pin)
		}
		err = mcp.device.DigitalWrite(pin, mcp23017.PinLevel(pullUpOrHigh))
		if err != nil {
			return errors.Wrapf(err, "failed to set pin %d initial level", pin)
		}
		delete(mcp.inputs, pin)
		mcp.outputs[pin] = true
	} else {
		err = mcp.device.PinMode(pin, mcp23017.INPUT)
		if err != nil {
			return errors.Wrapf(err, "failed to set pin %d as input", pin)
		}
		// The chip has no built-in pull-down, disabled pull-up means a
		// floating input.
		err = mcp.device.SetPullUp(pin, pullUpOrHigh)
		if err != nil {
			return errors.Wrapf(err, "failed to set pin %d pull-up", pin)
		}
		delete(mcp.outputs, pin)
		mcp.inputs[pin] = true
	}

	return nil
}

func (mcp *McpIO) ReadPin(pin uint8) (state bool, err error) {
	if pin >= mcpioPinCount {
		return false, errors.Errorf("pin %d out of range (mcpio has %d pins)", pin, mcpioPinCount)
	}

	rawState, err := mcp.device.DigitalRead(pin)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read pin %d", pin)
	}

	return bool(rawState), nil
}

func (mcp *McpIO) WritePin(pin uint8, state bool) (err error) {
	if pin >= mcpioPinCount {
		return errors.Errorf("pin %d out of range (mcpio has %d pins)", pin, mcpioPinCount)
	}

	err = mcp.device.DigitalWrite(pin, mcp23017.PinLevel(state))
	if err != nil {
		return errors.Wrapf(err, "failed to write pin %d", pin)
	}

	return nil
}

func (mcp *McpIO) PinCount() int {
	return mcpioPinCount
}

func (mcp *McpIO) String() string {
	return mcpioDriverName
}

func (mcp *McpIO) IsReady() bool {
	return mcp.isReady
}

func (mcp *McpIO) Close() error {
	if mcp.device == nil {
		return nil
	}

	mcp.isReady = false
	for pin := range mcp.outputs {
		mcp.device.DigitalWrite(pin, mcp23017.PinLevel(false))
	}
	return mcp.device.Close()
}
