package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"svpwm-drive/svpwm"
	"svpwm-drive/utils"
)

func main() {
	var (
		udc      = flag.Float64("udc", 48, "DC link voltage, V")
		index    = flag.Float64("index", 1.0, "Modulation index, fraction of Udc/sqrt(3)")
		counter  = flag.Float64("counter", 4200, "Compare value for 100% duty")
		steps    = flag.Int("steps", 720, "Samples per electrical revolution")
		mode     = flag.String("mode", "magnitude_angle", "alpha_beta|magnitude_angle")
		outDir   = flag.String("out", "output/duty_plot", "Output directory")
		logLevel = flag.String("log", "info", "trace|debug|info|warn|error|critical")
	)
	flag.Parse()

	log := utils.NewLogger(os.Stdout, utils.ParseLevel(*logLevel))

	cfg := SweepConfig{
		DCLinkV:          *udc,
		Index:            *index,
		CounterFullScale: *counter,
		Steps:            *steps,
	}
	switch *mode {
	case "alpha_beta":
		cfg.Mode = svpwm.AlphaBeta
	case "magnitude_angle":
		cfg.Mode = svpwm.MagnitudeAngle
	default:
		log.Critical("Unknown mode %q", *mode)
		os.Exit(2)
	}

	if err := run(cfg, *outDir, log); err != nil {
		log.Critical("%v", err)
		os.Exit(1)
	}
}

func run(cfg SweepConfig, outDir string, log *utils.Logger) error {
	points, err := Sweep(cfg)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}

	csvPath := filepath.Join(outDir, "duties.csv")
	if err := WriteCSV(csvPath, points); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	log.Info("Wrote %d rows to %s", len(points), csvPath)

	pngPath := filepath.Join(outDir, "duties.png")
	title := fmt.Sprintf("SVPWM duties, Udc=%.1f V, m=%.2f, %s", cfg.DCLinkV, cfg.Index, cfg.Mode)
	if err := PlotDuties(pngPath, title, points); err != nil {
		return fmt.Errorf("plot: %w", err)
	}
	log.Info("Wrote %s", pngPath)
	return nil
}
