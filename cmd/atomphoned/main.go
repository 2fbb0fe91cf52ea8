// atomphoned is the process entry point: load configuration, bring up the
// board (an in-memory simulated board in this build), and hand off to the
// supervisor. Per spec §7, only failures in early initialization abort the
// process; once the supervisor's tasks are running, per-task errors are
// handled inside those tasks.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/atomphone/firmware/pkg/config"
	"github.com/atomphone/firmware/pkg/hal"
	"github.com/atomphone/firmware/pkg/logging"
	"github.com/atomphone/firmware/pkg/supervisor"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := run(); err != nil {
		logging.New("main").Error("fatal startup error", logging.F("err", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logging.New("main")

	device, err := initDevice(cfg)
	if err != nil {
		return fmt.Errorf("bring up board: %w", err)
	}

	registry := prometheus.NewRegistry()
	randomU32 := hal.NewSimRandomU32(int64(os.Getpid()))

	sup, err := supervisor.New(cfg, device, randomU32, registry)
	if err != nil {
		return fmt.Errorf("construct supervisor: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("atomphoned starting")
	go sup.Run()

	<-ctx.Done()
	log.Info("shutting down")
	sup.Stop()
	return nil
}

// initDevice brings up the board. A real board bring-up (Wi-Fi association,
// codec register bring-up, GPIO/LED drivers) lives entirely outside this
// module per spec §1 and §6; this host build wires an in-memory simulated
// board instead so the supervisor and tasks above it have something to run
// against.
func initDevice(cfg *config.Config) (hal.Device, error) {
	ip := net.ParseIP("127.0.0.1")
	audio := hal.NewSimAudioDevice()
	ui := hal.NewSimUiDevice()
	return hal.NewSimDevice(ip, audio, ui), nil
}
