// Package hci implements the command transport to the controller: it
// writes command packets to the control channel and routes completion
// events back to per-transaction callbacks.
package hci

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci/cmd"
	"github.com/go-bt/bthost/hci/evt"
)

var logger = bthost.GetLogger().ChildLogger(map[string]interface{}{"pkg": "hci"})

// Command is an outbound HCI command.
type Command interface {
	OpCode() int
	Len() int
	Marshal([]byte) error
}

// CommandRP unmarshals a command's return parameters.
type CommandRP interface {
	Unmarshal(b []byte) error
}

// TransactionID identifies one outstanding command exchange. IDs are
// monotonically increasing and never reused while the transaction's
// callback has not fired.
type TransactionID uint64

// CompleteFunc receives the outcome of a command exchange. It is
// invoked exactly once: with the raw return-parameter view once the
// matching event arrives, or with a terminal error if the channel
// closes first.
type CompleteFunc func(err error, ret []byte)

// HandlerFunc consumes one received event payload.
type HandlerFunc func(b []byte) error

type pending struct {
	id     TransactionID
	opcode int
	fn     CompleteFunc
}

// HCI is the host side of the hardware control channel.
type HCI struct {
	transport transport
	skt       io.ReadWriteCloser

	// Host to Controller command flow control [Vol 2, Part E, 4.4]
	chCmdBufs chan []byte

	muSent   sync.Mutex
	nextTxn  TransactionID
	sent     map[int]*pending // keyed by opcode; the controller correlates by opcode
	sentTxns map[TransactionID]struct{}

	// event hub
	evth map[int]HandlerFunc
	subh map[int]HandlerFunc

	addr bthost.Addr

	errorHandler func(error)
	err          error

	muClose   sync.Mutex
	done      chan struct{}
	sktRxChan chan []byte
}

// New returns an unopened HCI. Configure a transport before Init.
func New() *HCI {
	return &HCI{
		chCmdBufs: make(chan []byte, chCmdBufChanSize),
		sent:      make(map[int]*pending),
		sentTxns:  make(map[TransactionID]struct{}),
		evth:      map[int]HandlerFunc{},
		subh:      map[int]HandlerFunc{},
		done:      make(chan struct{}),
		sktRxChan: make(chan []byte, 16),
	}
}

// SetTransportHCISocket selects the raw socket transport.
func (h *HCI) SetTransportHCISocket(id int) {
	h.transport.hci = &transportHci{id: id}
}

// SetTransportH4Uart selects the H4 UART transport.
func (h *HCI) SetTransportH4Uart(path string) {
	h.transport.h4uart = &transportH4Uart{path: path}
}

// SetTransportH4Socket selects the H4 TCP socket transport.
func (h *HCI) SetTransportH4Socket(addr string, timeout time.Duration) {
	h.transport.h4socket = &transportH4Socket{addr: addr, timeout: timeout}
}

// SetErrorHandler installs the sink for asynchronous transport errors.
func (h *HCI) SetErrorHandler(f func(error)) {
	h.errorHandler = f
}

// SetReadWriteCloser injects an already-open control channel, bypassing
// transport selection. Used by tests and by emulated controllers.
func (h *HCI) SetReadWriteCloser(skt io.ReadWriteCloser) {
	h.skt = skt
}

// Addr returns the controller's public address.
func (h *HCI) Addr() bthost.Addr { return h.addr }

// Subscribe routes events with the given code to fn. The command
// completion codes are owned by the transport and cannot be taken over.
func (h *HCI) Subscribe(code int, fn HandlerFunc) error {
	if code == evt.CommandCompleteCode || code == evt.CommandStatusCode || code == evt.LEMetaCode {
		return fmt.Errorf("event code 0x%02X is reserved", code)
	}
	h.evth[code] = fn
	return nil
}

// SubscribeLE routes LE meta events with the given subevent code to fn.
func (h *HCI) SubscribeLE(subcode int, fn HandlerFunc) error {
	h.subh[subcode] = fn
	return nil
}

// Init opens the transport, starts the rx loops and runs the power-up
// command sequence.
func (h *HCI) Init() error {
	h.evth[evt.CommandCompleteCode] = h.handleCommandComplete
	h.evth[evt.CommandStatusCode] = h.handleCommandStatus
	h.evth[evt.LEMetaCode] = h.handleLEMeta

	if h.skt == nil {
		skt, err := getTransport(h.transport)
		if err != nil {
			return err
		}
		h.skt = skt
	}
	h.setAllowedCommands(1)

	go h.sktReadLoop()
	go h.sktProcessLoop()
	return h.init()
}

func (h *HCI) init() error {
	logger.Info("hci reset")
	if err := h.Send(&cmd.Reset{}, nil); err != nil {
		return errors.Wrap(err, "can't reset controller")
	}

	ReadBDADDRRP := cmd.ReadBDADDRRP{}
	if err := h.Send(&cmd.ReadBDADDR{}, &ReadBDADDRRP); err != nil {
		return errors.Wrap(err, "can't read BD_ADDR")
	}
	a := ReadBDADDRRP.BDADDR
	h.addr = bthost.NewAddr(bthost.AddrTypeBREDR,
		fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[5], a[4], a[3], a[2], a[1], a[0]))

	SetEventMaskRP := cmd.SetEventMaskRP{}
	h.Send(&cmd.SetEventMask{EventMask: 0x3dbff807fffbffff}, &SetEventMaskRP)

	LESetEventMaskRP := cmd.LESetEventMaskRP{}
	h.Send(&cmd.LESetEventMask{LEEventMask: 0x000000000000001F}, &LESetEventMaskRP)

	return h.err
}

// Close shuts the transport down. Every outstanding transaction fails
// with a terminal error.
func (h *HCI) Close() error {
	h.muClose.Lock()
	defer h.muClose.Unlock()

	select {
	case <-h.done:
		// already closed
	default:
		close(h.done)
	}
	return nil
}

// Error returns the terminal transport error, if any.
func (h *HCI) Error() error {
	return h.err
}

func (h *HCI) isOpen() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// SendCommand writes c to the control channel synchronously within the
// call and registers fn to fire once the matching completion event
// arrives. The returned TransactionID is unique among outstanding
// exchanges; a second command with the same opcode is rejected until
// the first one's callback has fired.
func (h *HCI) SendCommand(c Command, fn CompleteFunc) (TransactionID, error) {
	if fn == nil {
		return 0, fmt.Errorf("nil completion callback")
	}
	if h.err != nil {
		return 0, h.err
	}

	// get a command buffer, honoring controller flow control
	var b []byte
	select {
	case <-h.done:
		return 0, io.EOF
	case b = <-h.chCmdBufs:
	case <-time.After(chCmdBufTimeout):
		err := fmt.Errorf("chCmdBufs get timeout")
		h.dispatchError(err)
		return 0, err
	}

	b[0] = pktTypeCommand
	b[1] = byte(c.OpCode())
	b[2] = byte(c.OpCode() >> 8)
	b[3] = byte(c.Len())
	if err := c.Marshal(b[4:]); err != nil {
		return 0, errors.Wrap(err, "can't marshal cmd")
	}

	h.muSent.Lock()
	if _, ok := h.sent[c.OpCode()]; ok {
		h.muSent.Unlock()
		return 0, fmt.Errorf("command with opcode 0x%04X pending", c.OpCode())
	}
	h.nextTxn++
	p := &pending{id: h.nextTxn, opcode: c.OpCode(), fn: fn}
	h.sent[c.OpCode()] = p
	h.sentTxns[p.id] = struct{}{}
	h.muSent.Unlock()

	// On a non-nil error the callback has not fired and never will.
	if !h.isOpen() {
		h.remove(p)
		return 0, io.EOF
	}
	if n, err := h.skt.Write(b[:4+c.Len()]); err != nil {
		h.close(errors.Wrap(err, "can't send cmd"))
		h.remove(p)
		return 0, h.err
	} else if n != 4+c.Len() {
		h.close(fmt.Errorf("hci: short cmd write"))
		h.remove(p)
		return 0, h.err
	}

	return p.id, nil
}

// Send issues c and blocks until its return parameters arrive, then
// unmarshals them into r. Used by the init sequence and by callers that
// have no use for pipelining.
func (h *HCI) Send(c Command, r CommandRP) error {
	type result struct {
		err error
		ret []byte
	}
	ch := make(chan result, 1)
	if _, err := h.SendCommand(c, func(err error, ret []byte) {
		ch <- result{err, ret}
	}); err != nil {
		return err
	}

	res := <-ch
	if res.err != nil {
		return res.err
	}
	if len(res.ret) > 0 && res.ret[0] != 0x00 {
		return ErrCommand(res.ret[0])
	}
	if r != nil {
		return r.Unmarshal(res.ret)
	}
	return nil
}

// remove drops p from the outstanding tables without firing its
// callback. Used when the send itself fails and the error is returned
// to the caller instead.
func (h *HCI) remove(p *pending) {
	h.muSent.Lock()
	if cur, ok := h.sent[p.opcode]; ok && cur.id == p.id {
		delete(h.sent, p.opcode)
		delete(h.sentTxns, p.id)
	}
	h.muSent.Unlock()
}

// complete removes p from the outstanding tables and fires its callback
// exactly once.
func (h *HCI) complete(p *pending, err error, ret []byte) {
	h.muSent.Lock()
	cur, ok := h.sent[p.opcode]
	if !ok || cur.id != p.id {
		h.muSent.Unlock()
		return
	}
	delete(h.sent, p.opcode)
	delete(h.sentTxns, p.id)
	h.muSent.Unlock()

	p.fn(err, ret)
}

func (h *HCI) handleCommandComplete(b []byte) error {
	e := evt.CommandComplete(b)
	h.setAllowedCommands(int(e.NumHCICommandPackets()))

	// NOP command, used for flow control purpose [Vol 2, Part E, 4.4]
	if e.CommandOpcode() == 0x0000 {
		return nil
	}

	h.muSent.Lock()
	p, found := h.sent[int(e.CommandOpcode())]
	h.muSent.Unlock()
	if !found {
		return fmt.Errorf("can't find the cmd for CommandComplete: % X", e)
	}
	h.complete(p, nil, e.ReturnParameters())
	return nil
}

func (h *HCI) handleCommandStatus(b []byte) error {
	e := evt.CommandStatus(b)
	if !e.Valid() {
		err := fmt.Errorf("invalid command status: % X", b)
		h.dispatchError(err)
		return err
	}
	h.setAllowedCommands(int(e.NumHCICommandPackets()))

	h.muSent.Lock()
	p, found := h.sent[int(e.CommandOpcode())]
	h.muSent.Unlock()
	if !found {
		return fmt.Errorf("can't find the cmd for CommandStatus: % X", e)
	}
	h.complete(p, nil, []byte{e.Status()})
	return nil
}

func (h *HCI) handleLEMeta(b []byte) error {
	subcode := int(b[0])
	if f := h.subh[subcode]; f != nil {
		return f(b)
	}
	return fmt.Errorf("unsupported LE event: % X", b)
}

func (h *HCI) handlePkt(b []byte) error {
	// Strip the 1-byte HCI header and pass down the rest of the packet.
	t, b := b[0], b[1:]
	switch t {
	case pktTypeEvent:
		return h.handleEvt(b)
	case pktTypeACLData:
		// data-domain traffic is a peer service, not ours to decode
		return nil
	case pktTypeCommand:
		return fmt.Errorf("unmanaged cmd: % X", b)
	case pktTypeSCOData:
		return fmt.Errorf("unsupported sco packet: % X", b)
	case pktTypeVendor:
		return fmt.Errorf("unsupported vendor packet: % X", b)
	default:
		return fmt.Errorf("invalid packet: 0x%02X % X", t, b)
	}
}

func (h *HCI) handleEvt(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("truncated event packet: % X", b)
	}
	code, plen := int(b[0]), int(b[1])
	if plen != len(b[2:]) {
		return fmt.Errorf("invalid event packet: % X", b)
	}
	if f := h.evth[code]; f != nil {
		return f(b[2:])
	}
	if code == 0xff { // vendor events
		return nil
	}
	logger.Debugf("unhandled event packet: % X", b)
	return nil
}

func (h *HCI) sktProcessLoop() {
	defer h.cleanup()
	defer h.dispatchError(h.err)

	for {
		var p []byte
		var ok bool

		select {
		case <-h.done:
			h.err = io.EOF
			return
		case p, ok = <-h.sktRxChan:
			if !ok {
				h.err = io.EOF
				return
			}
		}

		if err := h.handlePkt(p); err != nil {
			// Some bluetooth devices may append vendor specific packets at the last,
			// in this case, simply ignore them.
			if strings.HasPrefix(err.Error(), "unsupported vendor packet:") {
				logger.Error("skt: ", err)
			} else {
				h.err = fmt.Errorf("skt handle error: %v", err)
				return
			}
		}
	}
}

func (h *HCI) sktReadLoop() {
	defer close(h.sktRxChan)

	b := make([]byte, 4096)

	for {
		n, err := h.skt.Read(b)
		switch {
		case n == 0 && err == nil:
			// read timeout
			select {
			case <-h.done:
				return
			default:
				continue
			}

		// callers depend on detecting io.EOF, don't wrap it.
		case err == io.EOF:
			h.err = err
			return

		case err != nil:
			h.err = fmt.Errorf("skt read error: %v", err)
			return

		default:
			p := make([]byte, n)
			copy(p, b)
			h.sktRxChan <- p
		}
	}
}

// cleanup fails every outstanding transaction with a terminal error and
// closes the socket.
func (h *HCI) cleanup() {
	h.close(nil)

	h.muSent.Lock()
	pp := make([]*pending, 0, len(h.sent))
	for _, p := range h.sent {
		pp = append(pp, p)
	}
	h.muSent.Unlock()

	err := h.err
	if err == nil {
		err = io.EOF
	}
	logger.Debugf("cleanup: failing %d outstanding transactions", len(pp))
	for _, p := range pp {
		h.complete(p, err, nil)
	}
}

func (h *HCI) close(err error) error {
	if err != nil {
		h.err = err
	}
	return h.skt.Close()
}

func (h *HCI) setAllowedCommands(n int) {
	if n > chCmdBufChanSize {
		n = chCmdBufChanSize
	}

	for len(h.chCmdBufs) < n {
		select {
		case <-h.done:
			return
		case h.chCmdBufs <- make([]byte, chCmdBufElementSize):
		case <-time.After(chCmdBufTimeout):
			h.dispatchError(fmt.Errorf("chCmdBufs put timeout"))
			return
		}
	}
}

func (h *HCI) dispatchError(e error) {
	switch {
	case e == nil:
	case h.errorHandler == nil:
		logger.Error(e)
	case !h.isOpen():
		logger.Debug("hci closing:", e)
	default:
		h.errorHandler(e)
	}
}
