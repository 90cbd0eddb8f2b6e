package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"svpwm-drive/utils"
)

func main() {
	var (
		iface       = flag.String("iface", "vcan0", "SocketCAN interface name")
		mapPath     = flag.String("map", "config/can/inverter_map.csv", "Path to the CAN signal map")
		profilePath = flag.String("profile", "inverter_loop/profiles/vf_ramp.json", "Drive profile JSON file")
		frameName   = flag.String("frame", "PWM_DUTY_CMD", "Duty command frame to transmit")
		feedback    = flag.String("feedback", "DC_LINK_STATE", "DC link feedback frame to receive")
		logLevel    = flag.String("log", "info", "trace|debug|info|warn|error|critical")
		dryRun      = flag.Bool("dry-run", false, "Log frames instead of opening SocketCAN")
	)
	flag.Parse()

	log, err := utils.NewFileLogger("inverter_loop.log", utils.ParseLevel(*logLevel), true)
	if err != nil {
		_, _ = os.Stderr.WriteString("ERROR: cannot open inverter_loop.log: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Close()

	cfg := RunnerConfig{
		Interface:     *iface,
		MapPath:       *mapPath,
		ProfilePath:   *profilePath,
		FrameName:     *frameName,
		FeedbackFrame: *feedback,
		DryRun:        *dryRun,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner, err := NewRunner(ctx, cfg, log)
	if err != nil {
		log.Critical("Startup failed: %v", err)
		os.Exit(1)
	}

	runErr := runner.Run(ctx)
	if err := runner.Close(); err != nil {
		log.Error("Close: %v", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Critical("Run failed: %v", runErr)
		log.Close()
		os.Exit(1)
	}
}
