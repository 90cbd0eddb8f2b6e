package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"svpwm-drive/svpwm"
	"svpwm-drive/utils"
)

type RunnerConfig struct {
	Interface     string
	MapPath       string
	ProfilePath   string
	FrameName     string
	FeedbackFrame string
	DryRun        bool
}

type Runner struct {
	cfg    RunnerConfig
	log    *utils.Logger
	cmap   *utils.CANMap
	prof   Profile
	writer utils.CANWriter
	reader utils.CANReader // nil in dry runs
	fd     *utils.FrameDef

	ref       Reference
	req       svpwm.Request
	udc       float64
	lastRx    time.Time
	haveRx    bool
	staleWarn bool
}

// DCLinkFeedback is a decoded DC bus measurement from CAN RX
type DCLinkFeedback struct {
	UdcV      float64
	Timestamp time.Time
}

func NewRunner(ctx context.Context, cfg RunnerConfig, log *utils.Logger) (*Runner, error) {
	cmap, err := utils.LoadCANMap(cfg.MapPath)
	if err != nil {
		return nil, fmt.Errorf("load can map: %w", err)
	}

	prof, err := LoadProfile(cfg.ProfilePath)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	if cfg.DryRun {
		log.Warn("Dry run: frames are logged, not transmitted; using nominal Udc=%.1f V", prof.Inverter.NominalUdcV)
		return newRunner(cfg, log, cmap, prof, utils.NewLogCANWriter(log), nil)
	}

	writer, err := utils.NewSocketCANWriter(ctx, cfg.Interface)
	if err != nil {
		return nil, err
	}

	reader, err := utils.NewSocketCANReader(ctx, cfg.Interface)
	if err != nil {
		_ = writer.Close()
		return nil, err
	}

	r, err := newRunner(cfg, log, cmap, prof, writer, reader)
	if err != nil {
		_ = multierr.Combine(reader.Close(), writer.Close())
		return nil, err
	}
	return r, nil
}

func newRunner(cfg RunnerConfig, log *utils.Logger, cmap *utils.CANMap, prof Profile,
	writer utils.CANWriter, reader utils.CANReader) (*Runner, error) {
	fd, err := cmap.FrameByName(cfg.FrameName)
	if err != nil {
		return nil, fmt.Errorf("frame: %w", err)
	}
	if reader != nil {
		if _, err := cmap.FrameByName(cfg.FeedbackFrame); err != nil {
			return nil, fmt.Errorf("feedback frame: %w", err)
		}
	}

	r := &Runner{
		cfg:    cfg,
		log:    log,
		cmap:   cmap,
		prof:   prof,
		writer: writer,
		reader: reader,
		fd:     fd,
		udc:    prof.Inverter.NominalUdcV,
		req: svpwm.Request{
			Mode:             prof.Mode(),
			CounterFullScale: float32(prof.Inverter.CounterFullScale),
		},
	}
	return r, nil
}

func (r *Runner) Close() error {
	var err error
	if r.reader != nil {
		err = multierr.Append(err, r.reader.Close())
	}
	if r.writer != nil {
		err = multierr.Append(err, r.writer.Close())
	}
	return err
}

func (r *Runner) Run(ctx context.Context) error {
	cycle := time.Duration(r.prof.Timing.CycleUS) * time.Microsecond
	r.log.Info("Starting PWM TX: frame=%s id=0x%X cycle=%s iface=%s profile=%s duration=%.2fs mode=%s counter=%.0f",
		r.fd.Name, r.fd.ID, cycle, r.cfg.Interface, r.prof.Meta.Name,
		r.prof.Timing.DurationS, r.prof.Mode(), r.prof.Inverter.CounterFullScale)

	start := time.Now()
	ticker := time.NewTicker(cycle)
	defer ticker.Stop()

	endAfter := time.Duration(r.prof.Timing.DurationS * float64(time.Second))
	dt := cycle.Seconds()
	var sent uint64

	rxChan := make(chan DCLinkFeedback, 16)
	if r.reader != nil {
		go r.receiveLoop(ctx, rxChan)
	}

	for {
		select {
		case <-ctx.Done():
			r.log.Warn("Context canceled; stopping TX")
			r.sendSafeState()
			r.log.Info("Completed TX. frames_sent=%d", sent)
			return ctx.Err()

		case fb := <-rxChan:
			r.udc = fb.UdcV
			r.lastRx = fb.Timestamp
			r.haveRx = true
			r.log.Trace("RX udc=%.1f V", fb.UdcV)

		case now := <-ticker.C:
			elapsed := now.Sub(start)
			if elapsed > endAfter {
				r.sendSafeState()
				r.log.Info("Completed TX. frames_sent=%d", sent)
				return nil
			}

			cmd, err := r.step(elapsed.Seconds(), dt, now)
			if err != nil {
				r.log.Critical("Modulation failed at t=%.4f: %v", elapsed.Seconds(), err)
				r.sendSafeState()
				return err
			}

			frame, err := r.cmap.EncodeDutyCommand(r.fd.Name, cmd)
			if err != nil {
				r.log.Error("Encode failed at t=%.4f: %v", elapsed.Seconds(), err)
				return err
			}
			if err := r.writer.WriteFrame(ctx, frame); err != nil {
				r.log.Critical("Transmit failed at t=%.4f: %v", elapsed.Seconds(), err)
				return err
			}

			sent++
			if r.log.Enabled(utils.TRACE) {
				r.log.Trace("TX t=%.4f id=0x%X data=% X sector=%d duty=(%.0f, %.0f, %.0f) |U|=%.2f ang=%.3f udc=%.1f",
					elapsed.Seconds(), frame.ID, frame.Data[:frame.Length], cmd.Sector,
					cmd.DutyA, cmd.DutyB, cmd.DutyC, r.req.Magnitude, r.req.AngleRad, r.udc)
			}
		}
	}
}

// step runs one control tick at profile time t and returns the duty command
// to transmit.
func (r *Runner) step(t, dt float64, now time.Time) (utils.DutyCommand, error) {
	sp := r.prof.Eval(t)
	r.checkFeedback(now)

	r.ref.Step(sp.FrequencyHz, dt)

	req := &r.req
	req.DCLink = float32(r.udc)
	switch req.Mode {
	case svpwm.AlphaBeta:
		alpha, beta := r.ref.Vector(sp.MagnitudeV, sp.PhaseOffsetRad)
		req.UAlpha = float32(alpha)
		req.UBeta = float32(beta)
	case svpwm.MagnitudeAngle:
		angle := float32(r.ref.Angle() + sp.PhaseOffsetRad)
		if r.prof.Inverter.WrapAngle {
			angle = svpwm.NormalizeAngle(angle)
		}
		req.Magnitude = float32(sp.MagnitudeV)
		req.AngleRad = angle
	}

	if err := req.Calculate(); err != nil {
		return utils.DutyCommand{}, fmt.Errorf("svpwm: mode=%s angle=%.4f udc=%.1f: %w",
			req.Mode, req.AngleRad, req.DCLink, err)
	}

	return utils.DutyCommand{
		DutyA:  float64(req.DutyA),
		DutyB:  float64(req.DutyB),
		DutyC:  float64(req.DutyC),
		Sector: req.Sector,
		Enable: sp.Enable,
	}, nil
}

// checkFeedback falls back to the nominal DC link voltage once feedback has
// been silent for longer than the configured timeout.
func (r *Runner) checkFeedback(now time.Time) {
	if r.reader == nil {
		return
	}
	timeout := time.Duration(r.prof.Inverter.FeedbackTimeoutMS) * time.Millisecond
	if r.haveRx && now.Sub(r.lastRx) <= timeout {
		r.staleWarn = false
		return
	}
	if !r.staleWarn {
		r.log.Warn("No DC link feedback for %s - using nominal Udc=%.1f V", timeout, r.prof.Inverter.NominalUdcV)
		r.staleWarn = true
	}
	r.udc = r.prof.Inverter.NominalUdcV
}

// sendSafeState disables the gates with the zero vector loaded.
func (r *Runner) sendSafeState() {
	half := r.prof.Inverter.CounterFullScale / 2
	frame, err := r.cmap.EncodeDutyCommand(r.fd.Name, utils.DutyCommand{DutyA: half, DutyB: half, DutyC: half})
	if err != nil {
		r.log.Error("Encode safe state failed: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := r.writer.WriteFrame(ctx, frame); err != nil {
		r.log.Error("Transmit safe state failed: %v", err)
	}
}

// receiveLoop reads CAN frames and forwards DC link feedback
func (r *Runner) receiveLoop(ctx context.Context, feedback chan<- DCLinkFeedback) {
	r.log.Debug("RX loop started")
	defer r.log.Debug("RX loop stopped")

	for {
		frame, err := r.reader.ReadFrame(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("RX error: %v", err)
			return
		}

		udc, ok, err := r.cmap.DecodeDCLink(frame, r.cfg.FeedbackFrame)
		if err != nil {
			r.log.Error("RX decode id=0x%X: %v", frame.ID, err)
			continue
		}
		if !ok {
			r.log.Trace("RX id=0x%X len=%d data=% X", frame.ID, frame.Length, frame.Data[:frame.Length])
			continue
		}

		select {
		case feedback <- DCLinkFeedback{UdcV: udc, Timestamp: time.Now()}:
		default:
			// Channel full, skip
		}
	}
}
