package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/hubertat/roverkit"
	"github.com/hubertat/roverkit/drivers"
)

var (
	Version string
	Build   string
)

func main() {
	var err error

	log.Println("roverkit boardtest started")
	log.Println("mock instance exercising servos and motors, should work off the hardware")

	board := &roverkit.Board{}
	board.MockPwm = &drivers.MockPwmDriver{}
	board.MockIo = &drivers.MockIoDriver{}

	log.Println("will init board drivers...")
	err = board.InitDrivers(context.Background())
	defer board.Close()
	if err != nil {
		panic(err)
	}

	board.MockIo.MonitorStateChanges(os.Stdout)

	startt := time.Now()

	log.Println("activate watchdog")
	err = board.PulseWatchdog(0)
	if err != nil {
		panic(err)
	}

	testChannel := 0
	for _, deg := range []float64{0, 180, 90} {
		log.Printf("time %.2f: setting servo on channel %d to %.0f degrees position", time.Since(startt).Seconds(), testChannel, deg)
		err = board.SetServoPosition(testChannel, deg)
		if err != nil {
			panic(err)
		}
		board.WatchdogPause(250 * time.Millisecond)
	}

	for motor := 1; motor <= 2; motor++ {
		for pwr := float64(0); pwr <= 100; pwr += 5 {
			err = board.SetMotorPower(motor, pwr)
			if err != nil {
				panic(err)
			}
			log.Printf("time %.2f: motor %d +%.0f", time.Since(startt).Seconds(), motor, pwr)
			board.WatchdogPause(100 * time.Millisecond)
		}

		board.SetMotorPower(motor, 0)
		board.WatchdogPause(250 * time.Millisecond)

		log.Printf("time %.2f: motor %d -50%%", time.Since(startt).Seconds(), motor)
		board.SetMotorPower(motor, -50)
		board.WatchdogPause(250 * time.Millisecond)

		log.Printf("time %.2f: motor %d -100%%", time.Since(startt).Seconds(), motor)
		board.SetMotorPower(motor, -100)
		board.WatchdogPause(250 * time.Millisecond)

		board.SetMotorPower(motor, 0)
	}

	log.Printf("time %.2f: starting both motors with watchdog keep-alive", time.Since(startt).Seconds())
	board.SetMotorsPower(50, -50)
	board.WatchdogPause(250 * time.Millisecond)

	board.PrintStatus(os.Stdout)

	log.Println("turning off all PWM channels")
	err = board.AllOff()
	if err != nil {
		panic(err)
	}
}
