package drivers

import (
	"context"
)

// PwmDriver exposes a bank of PWM channels. Pulse values use the full
// 16-bit range regardless of hardware resolution: 0 is off, 0xFFFF is
// fully on.
type PwmDriver interface {
	Setup(ctx context.Context, frequency uint16) error
	SetChannelPulse(channel int, pulse uint16) error
	Channels() int
	Close() error
	String() string
	IsReady() bool
}

func MapAllPwmDrivers() map[string]PwmDriver {
	drivers := []PwmDriver{
		&Pca9685{},
		&MockPwmDriver{},
	}

	mapped := make(map[string]PwmDriver)
	for _, driver := range drivers {
		mapped[driver.String()] = driver
	}
	return mapped
}
