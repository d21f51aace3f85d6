// Package h4 provides UART/TCP H4 framing transports for controllers
// that are not reachable through a kernel HCI socket.
package h4

import (
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"github.com/pkg/errors"
)

const (
	rxQueueSize = 64

	eventPacket byte = 0x04
	aclPacket   byte = 0x02
)

// DefaultSerialOptions returns the settings most H4 modules ship with.
func DefaultSerialOptions() serial.OpenOptions {
	return serial.OpenOptions{
		BaudRate:              1000000,
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		InterCharacterTimeout: 100,
	}
}

type h4 struct {
	rwc io.ReadWriteCloser
	rmu sync.Mutex
	wmu sync.Mutex

	frame *frame

	rxQueue chan []byte

	done chan int
	cmu  sync.Mutex
}

// NewSerial opens an H4 UART transport.
func NewSerial(opts serial.OpenOptions) (io.ReadWriteCloser, error) {
	// force these, the frame assembler depends on short reads
	opts.MinimumReadSize = 0
	opts.InterCharacterTimeout = 100

	sp, err := serial.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "can't open serial port")
	}

	// flush whatever the module buffered before we attached
	b := make([]byte, 2048)
	sp.Write([]byte{1, 3, 12, 0}) // dummy reset
	<-time.After(time.Millisecond * 250)
	if _, err = sp.Read(b); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "can't flush serial port")
	}

	return newH4(sp), nil
}

// NewSocket opens an H4 transport over TCP, for remote or emulated
// controllers.
func NewSocket(addr string, timeout time.Duration) (io.ReadWriteCloser, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.Wrap(err, "can't dial h4 socket")
	}
	return newH4(conn), nil
}

func newH4(rwc io.ReadWriteCloser) *h4 {
	h := &h4{
		rwc:     rwc,
		done:    make(chan int),
		rxQueue: make(chan []byte, rxQueueSize),
	}
	h.frame = newFrame(h.rxQueue)

	go h.rxLoop()
	return h
}

func (h *h4) Read(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.rmu.Lock()
	defer h.rmu.Unlock()

	var n int
	select {
	case t := <-h.rxQueue:
		if len(p) < len(t) {
			return 0, fmt.Errorf("buffer too small")
		}
		n = copy(p, t)

	case <-time.After(time.Second):
		// read timeout, callers treat (0, nil) as retryable
		return 0, nil
	}

	if !h.isOpen() {
		return 0, io.EOF
	}
	return n, nil
}

func (h *h4) Write(p []byte) (int, error) {
	if !h.isOpen() {
		return 0, io.EOF
	}

	h.wmu.Lock()
	defer h.wmu.Unlock()
	n, err := h.rwc.Write(p)
	return n, errors.Wrap(err, "can't write h4")
}

func (h *h4) Close() error {
	h.cmu.Lock()
	defer h.cmu.Unlock()

	select {
	case <-h.done:
		return nil

	default:
		close(h.done)
		h.rmu.Lock()
		err := h.rwc.Close()
		h.rmu.Unlock()

		return errors.Wrap(err, "can't close h4")
	}
}

func (h *h4) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return h.rwc != nil
	}
}

func (h *h4) rxLoop() {
	tmp := make([]byte, 512)
	for {
		select {
		case <-h.done:
			return
		default:
		}

		n, err := h.rwc.Read(tmp)
		if err != nil || n == 0 {
			continue
		}

		h.frame.Assemble(tmp[:n])
	}
}
