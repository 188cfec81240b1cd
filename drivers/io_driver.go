package drivers

import (
	"context"
)

// IoDriver gives pin-level access to a digital IO device. Pins are
// configured on demand: a pin can be switched between output (with an
// initial level) and input (with optional pull-up) at any time, and read
// back regardless of its configured direction.
type IoDriver interface {
	Setup(ctx context.Context) error
	ConfigurePin(pin uint8, output bool, pullUpOrHigh bool) error
	ReadPin(pin uint8) (bool, error)
	WritePin(pin uint8, state bool) error
	PinCount() int
	Close() error
	String() string
	IsReady() bool
}

func MapAllIoDrivers() map[string]IoDriver {
	drivers := []IoDriver{
		&McpIO{},
		&GpIO{},
		&MockIoDriver{},
	}

	mapped := make(map[string]IoDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}
