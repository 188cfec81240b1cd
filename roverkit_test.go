package roverkit

import (
	"context"
	"math"
	"testing"

	"github.com/hubertat/roverkit/drivers"
)

func assertPulse(t testing.TB, got, want uint16) {
	t.Helper()

	if got != want {
		t.Errorf("got pulse %d want %d", got, want)
	}
}

func assertFloat(t testing.TB, got, want float64) {
	t.Helper()

	if math.Abs(got-want) > 1e-9 {
		t.Errorf("got %v want %v", got, want)
	}
}

func newTestBoard(t testing.TB) *Board {
	t.Helper()

	b := &Board{
		MockPwm: &drivers.MockPwmDriver{},
		MockIo:  &drivers.MockIoDriver{},
	}
	err := b.InitDrivers(context.Background())
	if err != nil {
		t.Fatalf("InitDrivers returned err: %v", err)
	}

	return b
}

func TestInitDriversRequiresBothDevices(t *testing.T) {
	noPwm := &Board{MockIo: &drivers.MockIoDriver{}}
	if noPwm.InitDrivers(context.Background()) == nil {
		t.Error("expected error when no pwm driver configured")
	}

	noIo := &Board{MockPwm: &drivers.MockPwmDriver{}}
	if noIo.InitDrivers(context.Background()) == nil {
		t.Error("expected error when no io expander driver configured")
	}
}

func TestInitDriversDefaults(t *testing.T) {
	b := newTestBoard(t)

	if b.PwmFrequency != 50 {
		t.Errorf("default pwm frequency = %d, want 50", b.PwmFrequency)
	}
	if b.MockPwm.Frequency() != 50 {
		t.Errorf("pwm driver set up with frequency %d, want 50", b.MockPwm.Frequency())
	}
	if b.ServoMinPulse != 1680 || b.ServoMaxPulse != 8000 || b.ServoRange != 180 {
		t.Errorf("unexpected servo defaults: %d %d %v", b.ServoMinPulse, b.ServoMaxPulse, b.ServoRange)
	}
	if b.WatchdogPin == nil || *b.WatchdogPin != 7 {
		t.Errorf("unexpected watchdog pin default: %v", b.WatchdogPin)
	}
	if b.Watchdog() == nil {
		t.Error("watchdog not initialised")
	}
	if !b.MockIo.IsOutput(7) {
		t.Error("watchdog pin not configured as output")
	}
	assertFloat(t, b.MotorPowerLimiting(), 100)
}

func TestSetPercentageOn(t *testing.T) {
	cases := []struct {
		percent float64
		want    uint16
	}{
		{0, 0},
		{25, 16384},
		{50, 32768},
		{100, 65535},
		{-10, 0},
		{150, 65535},
	}

	b := newTestBoard(t)
	for _, c := range cases {
		err := b.SetPercentageOn(3, c.percent)
		if err != nil {
			t.Errorf("SetPercentageOn(%v) returned err: %v", c.percent, err)
		}
		assertPulse(t, b.MockPwm.Pulse(3), c.want)
		assertPulse(t, b.ChannelPulseLengths()[3], c.want)
	}
}

func TestSetConstantOn(t *testing.T) {
	b := newTestBoard(t)

	err := b.SetConstantOn(11)
	if err != nil {
		t.Errorf("SetConstantOn returned err: %v", err)
	}
	assertPulse(t, b.MockPwm.Pulse(11), 0xffff)
}

func TestSetPulseLengthInvalidChannel(t *testing.T) {
	b := newTestBoard(t)

	for _, channel := range []int{-1, 16, 100} {
		err := b.SetPulseLength(channel, 1234)
		if err != nil {
			t.Errorf("invalid channel %d should be skipped, got err: %v", channel, err)
		}
	}

	if b.MockPwm.WriteCount() != 0 {
		t.Errorf("invalid channels reached the driver, write count = %d", b.MockPwm.WriteCount())
	}
}

func TestSetServoPosition(t *testing.T) {
	b := newTestBoard(t)

	err := b.SetServoPosition(0, 0)
	if err != nil {
		t.Errorf("SetServoPosition returned err: %v", err)
	}
	assertPulse(t, b.MockPwm.Pulse(0), 1680)

	b.SetServoPosition(0, 180)
	assertPulse(t, b.MockPwm.Pulse(0), 8000)

	b.SetServoPosition(0, 90)
	assertPulse(t, b.MockPwm.Pulse(0), 4840)
}

func TestSetServoPositionRejections(t *testing.T) {
	b := newTestBoard(t)

	// servo channels are 0-11
	b.SetServoPosition(12, 90)
	// computed pulse outside the configured bounds, no clamping
	b.SetServoPosition(0, 200)
	b.SetServoPosition(0, -10)

	if b.MockPwm.WriteCount() != 0 {
		t.Errorf("rejected servo requests reached the driver, write count = %d", b.MockPwm.WriteCount())
	}
}

func TestSetMotorPower(t *testing.T) {
	b := newTestBoard(t)

	err := b.SetMotorPower(1, 50)
	if err != nil {
		t.Errorf("SetMotorPower returned err: %v", err)
	}
	assertPulse(t, b.MockPwm.Pulse(13), 32768)
	assertPulse(t, b.MockPwm.Pulse(12), 0)

	b.SetMotorPower(1, -50)
	assertPulse(t, b.MockPwm.Pulse(12), 32768)
	assertPulse(t, b.MockPwm.Pulse(13), 0)

	b.SetMotorPower(2, 100)
	assertPulse(t, b.MockPwm.Pulse(15), 65535)
	assertPulse(t, b.MockPwm.Pulse(14), 0)

	b.SetMotorPower(2, -100)
	assertPulse(t, b.MockPwm.Pulse(14), 65535)
	assertPulse(t, b.MockPwm.Pulse(15), 0)
}

func TestSetMotorPowerZeroStopsBothChannels(t *testing.T) {
	b := newTestBoard(t)

	b.SetMotorPower(1, 80)
	b.SetMotorPower(1, 0)
	assertPulse(t, b.MockPwm.Pulse(12), 0)
	assertPulse(t, b.MockPwm.Pulse(13), 0)
}

func TestSetMotorPowerUnknownMotor(t *testing.T) {
	b := newTestBoard(t)

	err := b.SetMotorPower(3, 50)
	if err != nil {
		t.Errorf("unknown motor should be skipped, got err: %v", err)
	}
	if b.MockPwm.WriteCount() != 0 {
		t.Errorf("unknown motor reached the driver, write count = %d", b.MockPwm.WriteCount())
	}
}

func TestSetMotorPowerLimiting(t *testing.T) {
	b := newTestBoard(t)

	b.SetMotorPowerLimiting(50)
	b.SetMotorPower(1, 100)
	assertPulse(t, b.MockPwm.Pulse(13), 32768)

	b.SetMotorPower(1, -100)
	assertPulse(t, b.MockPwm.Pulse(12), 32768)

	b.SetMotorPowerLimiting(150)
	assertFloat(t, b.MotorPowerLimiting(), 100)

	b.SetMotorPowerLimiting(-5)
	assertFloat(t, b.MotorPowerLimiting(), 0)
	b.SetMotorPower(1, 100)
	assertPulse(t, b.MockPwm.Pulse(13), 0)
}

func TestSetMotorsPower(t *testing.T) {
	b := newTestBoard(t)

	err := b.SetMotorsPower(50, -50)
	if err != nil {
		t.Errorf("SetMotorsPower returned err: %v", err)
	}
	assertPulse(t, b.MockPwm.Pulse(13), 32768)
	assertPulse(t, b.MockPwm.Pulse(14), 32768)
	assertPulse(t, b.MockPwm.Pulse(12), 0)
	assertPulse(t, b.MockPwm.Pulse(15), 0)
}

func TestAllOff(t *testing.T) {
	b := newTestBoard(t)

	b.SetConstantOn(2)
	b.SetPercentageOn(9, 40)
	err := b.AllOff()
	if err != nil {
		t.Errorf("AllOff returned err: %v", err)
	}

	for channel, pulse := range b.ChannelPulseLengths() {
		if pulse != 0 {
			t.Errorf("channel %d still at pulse %d after AllOff", channel, pulse)
		}
	}
}

func TestConfigureReadWriteIOPin(t *testing.T) {
	b := newTestBoard(t)

	err := b.ConfigureIOPin(0, true, false)
	if err != nil {
		t.Errorf("ConfigureIOPin returned err: %v", err)
	}

	err = b.SetIOPin(0, true)
	if err != nil {
		t.Errorf("SetIOPin returned err: %v", err)
	}
	state, err := b.ReadIOPin(0)
	if err != nil {
		t.Errorf("ReadIOPin returned err: %v", err)
	}
	if !state {
		t.Error("pin 0 should read high after SetIOPin(0, true)")
	}

	// input with pull-up reads high when nothing drives it
	err = b.ConfigureIOPin(4, false, true)
	if err != nil {
		t.Errorf("ConfigureIOPin returned err: %v", err)
	}
	state, _ = b.ReadIOPin(4)
	if !state {
		t.Error("pulled-up input should read high")
	}
}

func TestWatchdogDisabled(t *testing.T) {
	disabled := -1
	b := &Board{
		MockPwm:     &drivers.MockPwmDriver{},
		MockIo:      &drivers.MockIoDriver{},
		WatchdogPin: &disabled,
	}
	err := b.InitDrivers(context.Background())
	if err != nil {
		t.Fatalf("InitDrivers returned err: %v", err)
	}

	if b.Watchdog() != nil {
		t.Error("watchdog should not be initialised with pin out of range")
	}
	if err := b.PulseWatchdog(0); err != nil {
		t.Errorf("PulseWatchdog without watchdog should be a no-op, got err: %v", err)
	}
	if len(b.MockIo.Writes()) != 0 {
		t.Error("no pin writes expected without a watchdog")
	}
}

type stubVoltageSensor struct {
	sample uint16
	err    error
}

func (s *stubVoltageSensor) Setup(ctx context.Context) error { return nil }
func (s *stubVoltageSensor) ReadSample() (uint16, error)     { return s.sample, s.err }
func (s *stubVoltageSensor) Close() error                    { return nil }
func (s *stubVoltageSensor) String() string                  { return "stub_adc" }
func (s *stubVoltageSensor) IsReady() bool                   { return true }

func TestMotorVoltage(t *testing.T) {
	b := newTestBoard(t)
	b.adc = &stubVoltageSensor{sample: 0xfff}

	got, err := b.MotorVoltage()
	if err != nil {
		t.Fatalf("MotorVoltage returned err: %v", err)
	}
	// full scale reads the Pi supply through the divider
	want := (5.2*8.0645 - 0.24) * 1.1
	assertFloat(t, got, want)
}

func TestMotorVoltageCalibration(t *testing.T) {
	b := newTestBoard(t)
	b.adc = &stubVoltageSensor{sample: 0x800}

	b.SetVoltageCalibration(0.195, 1.11)

	got, err := b.MotorVoltage()
	if err != nil {
		t.Fatalf("MotorVoltage returned err: %v", err)
	}
	adcVolts := 5.2 * float64(0x800) / float64(0xfff)
	want := (adcVolts*8.0645 - 0.195) * 1.11
	assertFloat(t, got, want)
}

func TestMotorVoltageWithoutSensor(t *testing.T) {
	b := newTestBoard(t)

	_, err := b.MotorVoltage()
	if err == nil {
		t.Error("expected error when no voltage sensor configured")
	}
}
