package hci

import (
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-bt/bthost/hci/cmd"
	"github.com/go-bt/bthost/hci/evt"
)

// fakeController emulates the controller side of the control channel.
// In auto mode every command is acknowledged with a successful Command
// Complete; with auto off commands sit outstanding until the test
// completes them.
type fakeController struct {
	mu      sync.Mutex
	auto    bool
	written [][]byte

	rx   chan []byte
	done chan struct{}
	once sync.Once
}

func newFakeController() *fakeController {
	return &fakeController{auto: true, rx: make(chan []byte, 32), done: make(chan struct{})}
}

func (c *fakeController) Read(b []byte) (int, error) {
	select {
	case p := <-c.rx:
		return copy(b, p), nil
	case <-c.done:
		return 0, io.EOF
	}
}

func (c *fakeController) Write(b []byte) (int, error) {
	select {
	case <-c.done:
		return 0, io.EOF
	default:
	}

	p := make([]byte, len(b))
	copy(p, b)
	c.mu.Lock()
	c.written = append(c.written, p)
	auto := c.auto
	c.mu.Unlock()

	if auto && p[0] == pktTypeCommand {
		opcode := int(p[1]) | int(p[2])<<8
		c.completeCommand(opcode, c.returnParams(opcode))
	}
	return len(b), nil
}

func (c *fakeController) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *fakeController) setAuto(v bool) {
	c.mu.Lock()
	c.auto = v
	c.mu.Unlock()
}

func (c *fakeController) returnParams(opcode int) []byte {
	if opcode == (&cmd.ReadBDADDR{}).OpCode() {
		return []byte{0x00, 0x66, 0x55, 0x44, 0x33, 0x22, 0x11}
	}
	return []byte{0x00}
}

func (c *fakeController) completeCommand(opcode int, ret []byte) {
	payload := append([]byte{0x01, byte(opcode), byte(opcode >> 8)}, ret...)
	c.sendEvent(evt.CommandCompleteCode, payload)
}

func (c *fakeController) sendEvent(code int, payload []byte) {
	pkt := append([]byte{pktTypeEvent, byte(code), byte(len(payload))}, payload...)
	select {
	case c.rx <- pkt:
	case <-c.done:
	}
}

type cmdResult struct {
	err error
	ret []byte
}

func newTestHCI(t *testing.T) (*HCI, *fakeController) {
	t.Helper()
	ctrl := newFakeController()
	h := New()
	h.SetReadWriteCloser(ctrl)
	return h, ctrl
}

func initTestHCI(t *testing.T) (*HCI, *fakeController) {
	t.Helper()
	h, ctrl := newTestHCI(t)
	require.NoError(t, h.Init())
	t.Cleanup(func() { h.Close() })
	return h, ctrl
}

func awaitResult(t *testing.T, ch chan cmdResult) cmdResult {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(time.Second):
		t.Fatal("command callback never fired")
		return cmdResult{}
	}
}

func TestInitReadsAddress(t *testing.T) {
	h, _ := initTestHCI(t)
	assert.Equal(t, "11:22:33:44:55:66", h.Addr().Value)
}

func TestSendBlocking(t *testing.T) {
	h, _ := initTestHCI(t)
	require.NoError(t, h.Send(&cmd.WriteScanEnable{ScanEnable: 2}, nil))
}

func TestSendCommandCompletes(t *testing.T) {
	h, _ := initTestHCI(t)

	ch := make(chan cmdResult, 1)
	_, err := h.SendCommand(&cmd.WriteScanEnable{}, func(err error, ret []byte) {
		ch <- cmdResult{err, ret}
	})
	require.NoError(t, err)

	res := awaitResult(t, ch)
	require.NoError(t, res.err)
	require.NotEmpty(t, res.ret)
	assert.Equal(t, byte(0x00), res.ret[0])
}

func TestTransactionIDsMonotonic(t *testing.T) {
	h, _ := initTestHCI(t)

	var last TransactionID
	for i := 0; i < 5; i++ {
		ch := make(chan cmdResult, 1)
		id, err := h.SendCommand(&cmd.WriteScanEnable{}, func(err error, ret []byte) {
			ch <- cmdResult{err, ret}
		})
		require.NoError(t, err)
		assert.Greater(t, uint64(id), uint64(last))
		last = id
		awaitResult(t, ch)
	}
}

func TestDuplicateOpcodeRejected(t *testing.T) {
	h, ctrl := initTestHCI(t)
	ctrl.setAuto(false)

	ch := make(chan cmdResult, 1)
	_, err := h.SendCommand(&cmd.WriteScanEnable{}, func(err error, ret []byte) {
		ch <- cmdResult{err, ret}
	})
	require.NoError(t, err)

	// same opcode while the first is outstanding
	fired := false
	_, err = h.SendCommand(&cmd.WriteScanEnable{}, func(error, []byte) { fired = true })
	require.Error(t, err)
	assert.False(t, fired, "rejected send must not fire its callback")

	// a different opcode is fine
	ch2 := make(chan cmdResult, 1)
	_, err = h.SendCommand(&cmd.WriteLocalName{}, func(err error, ret []byte) {
		ch2 <- cmdResult{err, ret}
	})
	require.NoError(t, err)

	op := (&cmd.WriteScanEnable{}).OpCode()
	ctrl.completeCommand(op, []byte{0x00})
	ctrl.completeCommand((&cmd.WriteLocalName{}).OpCode(), []byte{0x00})
	require.NoError(t, awaitResult(t, ch).err)
	require.NoError(t, awaitResult(t, ch2).err)
}

func TestCloseFailsOutstanding(t *testing.T) {
	h, ctrl := initTestHCI(t)
	ctrl.setAuto(false)

	ch := make(chan cmdResult, 1)
	_, err := h.SendCommand(&cmd.WriteScanEnable{}, func(err error, ret []byte) {
		ch <- cmdResult{err, ret}
	})
	require.NoError(t, err)

	require.NoError(t, h.Close())
	res := awaitResult(t, ch)
	assert.Error(t, res.err)
}

func TestSendAfterClose(t *testing.T) {
	h, _ := initTestHCI(t)
	require.NoError(t, h.Close())

	fired := false
	_, err := h.SendCommand(&cmd.WriteScanEnable{}, func(error, []byte) { fired = true })
	assert.Error(t, err)
	assert.False(t, fired)
}

func TestSubscribeReservedCodes(t *testing.T) {
	h, _ := newTestHCI(t)
	assert.Error(t, h.Subscribe(evt.CommandCompleteCode, func([]byte) error { return nil }))
	assert.Error(t, h.Subscribe(evt.CommandStatusCode, func([]byte) error { return nil }))
	assert.Error(t, h.Subscribe(evt.LEMetaCode, func([]byte) error { return nil }))
	assert.NoError(t, h.Subscribe(evt.DisconnectionCompleteCode, func([]byte) error { return nil }))
}

func TestEventRouting(t *testing.T) {
	h, ctrl := newTestHCI(t)

	got := make(chan []byte, 1)
	require.NoError(t, h.Subscribe(evt.DisconnectionCompleteCode, func(b []byte) error {
		got <- b
		return nil
	}))
	require.NoError(t, h.Init())
	defer h.Close()

	payload := []byte{0x00, 0x40, 0x00, 0x13}
	ctrl.sendEvent(evt.DisconnectionCompleteCode, payload)

	select {
	case b := <-got:
		assert.Equal(t, payload, b)
	case <-time.After(time.Second):
		t.Fatal("event handler never fired")
	}
}

func TestLEMetaRouting(t *testing.T) {
	h, ctrl := newTestHCI(t)

	got := make(chan []byte, 1)
	require.NoError(t, h.SubscribeLE(evt.LEAdvertisingReportSubCode, func(b []byte) error {
		got <- b
		return nil
	}))
	require.NoError(t, h.Init())
	defer h.Close()

	payload := []byte{byte(evt.LEAdvertisingReportSubCode), 0x00}
	ctrl.sendEvent(evt.LEMetaCode, payload)

	select {
	case b := <-got:
		assert.Equal(t, payload, b)
	case <-time.After(time.Second):
		t.Fatal("LE subevent handler never fired")
	}
}
