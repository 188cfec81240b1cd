package drivers

import (
	"context"
	"fmt"
	"io"
)

const mockIoDriverName = "mock_io"
const mockIoPinCount = 16

type MockPinWrite struct {
	Pin   uint8
	State bool
}

// MockIoDriver keeps pin state in memory, for tests and dry runs off the
// hardware.
type MockIoDriver struct {
	states  map[uint8]bool
	outputs map[uint8]bool
	writes  []MockPinWrite
	ready   bool

	writeTo          io.Writer
	writeStateChange bool
}

func (md *MockIoDriver) Setup(ctx context.Context) error {
	md.states = make(map[uint8]bool)
	md.outputs = make(map[uint8]bool)
	md.writes = nil
	md.ready = true
	return nil
}

func (md *MockIoDriver) ConfigurePin(pin uint8, output bool, pullUpOrHigh bool) error {
	if pin >= mockIoPinCount {
		return fmt.Errorf("pin %d out of range (mock has %d pins)", pin, mockIoPinCount)
	}
	if !md.ready {
		return fmt.Errorf("mock io driver not ready")
	}

	if output {
		md.outputs[pin] = true
		md.states[pin] = pullUpOrHigh
	} else {
		delete(md.outputs, pin)
		md.states[pin] = pullUpOrHigh
	}
	return nil
}

func (md *MockIoDriver) ReadPin(pin uint8) (bool, error) {
	if pin >= mockIoPinCount {
		return false, fmt.Errorf("pin %d out of range (mock has %d pins)", pin, mockIoPinCount)
	}
	return md.states[pin], nil
}

func (md *MockIoDriver) WritePin(pin uint8, state bool) error {
	if pin >= mockIoPinCount {
		return fmt.Errorf("pin %d out of range (mock has %d pins)", pin, mockIoPinCount)
	}

	if md.writeStateChange && state != md.states[pin] {
		fmt.Fprintf(md.writeTo, "[pin %d] state changed to %v\n", pin, state)
	}
	md.states[pin] = state
	md.writes = append(md.writes, MockPinWrite{Pin: pin, State: state})
	return nil
}

func (md *MockIoDriver) PinCount() int {
	return mockIoPinCount
}

func (md *MockIoDriver) String() string {
	return mockIoDriverName
}

func (md *MockIoDriver) IsReady() bool {
	return md.ready
}

func (md *MockIoDriver) Close() error {
	md.ready = false
	return nil
}

// Writes returns every WritePin call since Setup, in order.
func (md *MockIoDriver) Writes() []MockPinWrite {
	return md.writes
}

func (md *MockIoDriver) IsOutput(pin uint8) bool {
	return md.outputs[pin]
}

func (md *MockIoDriver) MonitorStateChanges(writer io.Writer) {
	md.writeTo = writer
	md.writeStateChange = true
}
