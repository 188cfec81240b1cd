package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hubertat/servicemaker"

	"github.com/hubertat/roverkit"
	"github.com/hubertat/roverkit/drivers"
)

const defaultFeedInterval = "200ms"

var (
	Version string
	Build   string

	config       = flag.String("config", "config.json", "path of the configuration file")
	flagInstall  = flag.Bool("install", false, "Install service in os")
	flagMock     = flag.Bool("mock", false, "run against mock drivers instead of hardware")
	feedInterval = flag.String("feed", defaultFeedInterval, "watchdog feed interval (time.Duration)")

	rkService = servicemaker.ServiceMaker{
		User:               "roverkit",
		UserGroups:         []string{"gpio", "i2c"},
		ServicePath:        "/etc/systemd/system/roverkit.service",
		ServiceDescription: "roverkit service: keeps the robot controller board watchdog fed so PWM power stays enabled. github.com/hubertat",
		ExecDir:            "/srv/roverkit",
		ExecName:           "roverkit",
	}
)

func main() {
	log.Printf("roverkit %s started\n", Version)
	flag.Parse()

	if *flagInstall {
		err := rkService.InstallService()
		if err != nil {
			panic(err)
		} else {
			log.Println("service installed!")
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedDuration, err := time.ParseDuration(*feedInterval)
	if err != nil {
		panic(err)
	}

	board := &roverkit.Board{}
	configFile, err := os.Open(*config)
	if err == nil {
		cBuff, err := io.ReadAll(configFile)
		if err != nil {
			log.Fatalf("failed reading config file: %v\n", err)
		}

		err = json.Unmarshal(cBuff, board)
		if err != nil {
			log.Fatalf("failed unmarshalling json config: %v", err)
		}
	} else {
		log.Printf("can't find/open config file (%s), starting with defaults. Reason: \n%v\n", *config, err)
	}

	if *flagMock {
		board.MockPwm = &drivers.MockPwmDriver{}
		board.MockIo = &drivers.MockIoDriver{}
	} else {
		if board.Pca9685 == nil {
			board.Pca9685 = &drivers.Pca9685{}
		}
		if board.Mcp23017 == nil {
			board.Mcp23017 = &drivers.McpIO{BusNo: 1}
		}
		if board.Adc == nil {
			board.Adc = &drivers.Mcp3221{}
		}
	}

	log.Println("will init board drivers...")
	err = board.InitDrivers(ctx)
	defer board.Close()
	if err != nil {
		panic(err)
	}

	board.PrintStatus(os.Stdout)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	signal.Notify(c, syscall.SIGTERM)

	log.Printf("feeding watchdog every %s, PWM power enabled\n", feedDuration)
	for {
		select {
		case <-c:
			log.Println("signal received, turning all outputs off")
			err = board.AllOff()
			if err != nil {
				log.Printf("failed to zero pwm channels: %v\n", err)
			}
			return
		default:
			err = board.WatchdogPause(feedDuration)
			if err != nil {
				log.Fatalf("watchdog feed failed: %v\n", err)
			}
		}
	}
}
