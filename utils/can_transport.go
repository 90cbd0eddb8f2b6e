package utils

import (
	"context"

	"go.einride.tech/can"
)

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

// CANReader defines the interface for reading CAN frames
type CANReader interface {
	ReadFrame(ctx context.Context) (can.Frame, error)
	Close() error
}

// LogCANWriter stands in for the bus in dry runs and logs every frame it is
// given instead of transmitting it.
type LogCANWriter struct {
	log  *Logger
	sent uint64
}

func NewLogCANWriter(log *Logger) *LogCANWriter {
	return &LogCANWriter{log: log}
}

func (w *LogCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.sent++
	w.log.Debug("DRY-RUN TX #%d %s", w.sent, frame.String())
	return nil
}

// Sent returns the number of frames accepted so far.
func (w *LogCANWriter) Sent() uint64 {
	return w.sent
}

func (w *LogCANWriter) Close() error {
	return nil
}
