package drivers

import (
	"context"
	"fmt"
)

const mockPwmDriverName = "mock_pwm"
const mockPwmChannelCount = 16

// MockPwmDriver records channel pulses in memory, for tests and dry runs
// off the hardware.
type MockPwmDriver struct {
	pulses     []uint16
	writeCount int
	frequency  uint16
	ready      bool
}

func (mp *MockPwmDriver) Setup(ctx context.Context, frequency uint16) error {
	mp.pulses = make([]uint16, mockPwmChannelCount)
	mp.writeCount = 0
	mp.frequency = frequency
	mp.ready = true
	return nil
}

func (mp *MockPwmDriver) SetChannelPulse(channel int, pulse uint16) error {
	if channel < 0 || channel >= mockPwmChannelCount {
		return fmt.Errorf("channel %d out of range (mock has %d channels)", channel, mockPwmChannelCount)
	}
	if !mp.ready {
		return fmt.Errorf("mock pwm driver not ready")
	}

	mp.pulses[channel] = pulse
	mp.writeCount++
	return nil
}

func (mp *MockPwmDriver) Channels() int {
	return mockPwmChannelCount
}

func (mp *MockPwmDriver) String() string {
	return mockPwmDriverName
}

func (mp *MockPwmDriver) IsReady() bool {
	return mp.ready
}

func (mp *MockPwmDriver) Close() error {
	mp.ready = false
	return nil
}

// Pulse returns the last pulse written to the channel.
func (mp *MockPwmDriver) Pulse(channel int) uint16 {
	if channel < 0 || channel >= len(mp.pulses) {
		return 0
	}
	return mp.pulses[channel]
}

// WriteCount returns how many channel writes happened since Setup.
func (mp *MockPwmDriver) WriteCount() int {
	return mp.writeCount
}

// Frequency returns the frequency the driver was set up with.
func (mp *MockPwmDriver) Frequency() uint16 {
	return mp.frequency
}
