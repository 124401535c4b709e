// gripperd is the control and telemetry daemon for a parallel
// gripper. It exposes one command endpoint per operation, polls the
// device state in the background, and republishes it as a periodic
// joint state stream over websocket and MQTT.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grasplab/go-gripper/internal/config"
	"github.com/grasplab/go-gripper/internal/log"
	"github.com/grasplab/go-gripper/pkg/control"
	"github.com/grasplab/go-gripper/pkg/gripper"
	"github.com/grasplab/go-gripper/pkg/mqtt"
	"github.com/grasplab/go-gripper/pkg/telemetry"
	"github.com/grasplab/go-gripper/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file")
	sim := flag.Bool("sim", false, "Use the simulated gripper instead of hardware")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gripperd:", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	if *sim && cfg.DeviceAddress == "" {
		cfg.DeviceAddress = "sim"
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		os.Exit(1)
	}

	log.Info("gripperd starting",
		"device", cfg.DeviceAddress,
		"joints", cfg.JointNames,
		"poll_rate", cfg.PollRate,
		"publish_rate", cfg.PublishRate,
		"sim", *sim)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down")
		cancel()
	}()

	var dev gripper.Device
	if *sim {
		dev = gripper.NewSim()
	} else {
		dev = gripper.NewHTTPDevice(cfg.DeviceAddress)
	}

	cache := &telemetry.Cache{}
	poller := telemetry.NewPoller(dev, cache, cfg.PollInterval())

	handlers := control.NewHandlers(dev, cfg.WidthTolerance, cfg.DefaultSpeed, cfg.GraspEpsilon)
	dispatcher := control.NewDispatcher(handlers)

	server := web.NewServer(ctx, cfg.HTTPAddr, dispatcher, cache)

	sinks := []telemetry.Sink{server.JointStateSink()}
	if cfg.MQTTAddr != "" {
		broker := mqtt.NewBroker(cfg.MQTTAddr)
		if err := broker.Start(); err != nil {
			log.Error("failed to start mqtt broker", "error", err)
			os.Exit(1)
		}
		defer broker.Close()
		sinks = append(sinks, broker.Sink())
	}

	publisher := telemetry.NewPublisher(cache, [2]string{cfg.JointNames[0], cfg.JointNames[1]}, cfg.PublishInterval(), sinks...)

	go poller.Run(ctx)
	go publisher.Run(ctx)

	go func() {
		<-ctx.Done()
		if err := server.Shutdown(); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
	}()

	log.Info("command api listening", "addr", cfg.HTTPAddr)
	if err := server.Start(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
