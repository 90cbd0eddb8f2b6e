//go:build linux

package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

var errReceiveFailed = errors.New("socketcan: receive failed")

type SocketCANWriter struct {
	conn net.Conn
	tx   *socketcan.Transmitter
}

func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}
	return &SocketCANWriter{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
	}, nil
}

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	return w.tx.TransmitFrame(ctx, frame)
}

func (w *SocketCANWriter) Close() error {
	if w.conn != nil {
		return w.conn.Close()
	}
	return nil
}

// SocketCANReader receives frames from a SocketCAN interface.
type SocketCANReader struct {
	conn   net.Conn
	recv   *socketcan.Receiver
	frames chan can.Frame
	err    error // set before frames is closed
	done   chan struct{}
	once   sync.Once
}

func NewSocketCANReader(ctx context.Context, iface string) (*SocketCANReader, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial: %w", err)
	}

	r := &SocketCANReader{
		conn:   conn,
		recv:   socketcan.NewReceiver(conn),
		frames: make(chan can.Frame),
		done:   make(chan struct{}),
	}
	go r.pump()
	return r, nil
}

// pump owns the receiver so a canceled ReadFrame never leaves a blocked
// Receive behind that would swallow the next frame.
func (r *SocketCANReader) pump() {
	for r.recv.Receive() {
		select {
		case r.frames <- r.recv.Frame():
		case <-r.done:
		}
	}
	r.err = r.recv.Err()
	if r.err == nil {
		r.err = errReceiveFailed
	}
	close(r.frames)
}

// ReadFrame blocks until a frame arrives or ctx is done.
func (r *SocketCANReader) ReadFrame(ctx context.Context) (can.Frame, error) {
	select {
	case <-ctx.Done():
		return can.Frame{}, ctx.Err()
	case f, ok := <-r.frames:
		if !ok {
			return can.Frame{}, r.err
		}
		return f, nil
	}
}

func (r *SocketCANReader) Close() error {
	r.once.Do(func() { close(r.done) })
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
