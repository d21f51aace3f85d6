package gap

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci"
)

// fakeCommander stands in for the command transport. In auto mode every
// command completes successfully and synchronously; in manual mode
// completions are queued and released one at a time, which lets tests
// interleave cancellation with an in-flight start.
type sentCmd struct {
	c  hci.Command
	fn hci.CompleteFunc
}

type fakeCommander struct {
	mu      sync.Mutex
	auto    bool
	nextTxn hci.TransactionID
	status  map[int]byte
	sendErr map[int]error
	sent    []sentCmd
	queue   []sentCmd

	handlers map[int]hci.HandlerFunc
	subh     map[int]hci.HandlerFunc
	addr     bthost.Addr
}

func newFakeCommander() *fakeCommander {
	return &fakeCommander{
		auto:     true,
		status:   map[int]byte{},
		sendErr:  map[int]error{},
		handlers: map[int]hci.HandlerFunc{},
		subh:     map[int]hci.HandlerFunc{},
		addr:     bthost.NewAddr(bthost.AddrTypeBREDR, "00:11:22:33:44:55"),
	}
}

func (f *fakeCommander) SendCommand(c hci.Command, fn hci.CompleteFunc) (hci.TransactionID, error) {
	f.mu.Lock()
	if err := f.sendErr[c.OpCode()]; err != nil {
		f.mu.Unlock()
		return 0, err
	}
	f.nextTxn++
	id := f.nextTxn
	f.sent = append(f.sent, sentCmd{c, fn})
	auto := f.auto
	st := f.status[c.OpCode()]
	if !auto {
		f.queue = append(f.queue, sentCmd{c, fn})
	}
	f.mu.Unlock()

	if auto && fn != nil {
		fn(nil, []byte{st})
	}
	return id, nil
}

func (f *fakeCommander) Send(c hci.Command, r hci.CommandRP) error {
	f.mu.Lock()
	f.sent = append(f.sent, sentCmd{c, nil})
	err := f.sendErr[c.OpCode()]
	st := f.status[c.OpCode()]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	if st != 0x00 {
		return hci.ErrCommand(st)
	}
	return nil
}

func (f *fakeCommander) Subscribe(code int, fn hci.HandlerFunc) error {
	f.handlers[code] = fn
	return nil
}

func (f *fakeCommander) SubscribeLE(subcode int, fn hci.HandlerFunc) error {
	f.subh[subcode] = fn
	return nil
}

func (f *fakeCommander) Addr() bthost.Addr { return f.addr }

// completeNext releases the oldest queued completion.
func (f *fakeCommander) completeNext(t *testing.T) {
	t.Helper()
	f.mu.Lock()
	require.NotEmpty(t, f.queue, "no command in flight")
	s := f.queue[0]
	f.queue = f.queue[1:]
	st := f.status[s.c.OpCode()]
	f.mu.Unlock()

	if s.fn != nil {
		s.fn(nil, []byte{st})
	}
}

func (f *fakeCommander) inflight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queue)
}

// sentOpcodes lists every opcode sent so far, in order.
func (f *fakeCommander) sentOpcodes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int, len(f.sent))
	for i, s := range f.sent {
		out[i] = s.c.OpCode()
	}
	return out
}

func (f *fakeCommander) countSent(opcode int) int {
	n := 0
	for _, op := range f.sentOpcodes() {
		if op == opcode {
			n++
		}
	}
	return n
}

// lastSent returns the most recent command with the given opcode.
func (f *fakeCommander) lastSent(opcode int) hci.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].c.OpCode() == opcode {
			return f.sent[i].c
		}
	}
	return nil
}

func (f *fakeCommander) inject(t *testing.T, code int, payload []byte) {
	t.Helper()
	fn := f.handlers[code]
	require.NotNil(t, fn, "no handler for event 0x%02x", code)
	require.NoError(t, fn(payload))
}

func (f *fakeCommander) injectLE(t *testing.T, subcode int, payload []byte) {
	t.Helper()
	fn := f.subh[subcode]
	require.NotNil(t, fn, "no handler for LE subevent 0x%02x", subcode)
	require.NoError(t, fn(payload))
}

// wire-order test addresses; the printed form reverses the bytes.
var (
	peerWire = [6]byte{0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	peerAddr = "11:22:33:44:55:66"
)
