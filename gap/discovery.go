package gap

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci/cmd"
	"github.com/go-bt/bthost/hci/evt"
	"github.com/go-bt/bthost/parser"
	"github.com/go-bt/bthost/peer"
)

// sessionState is the explicit per-transport mode state. Keeping
// Requesting distinct from Active lets a stop that races a start
// discard the late-arriving session instead of clobbering it.
type sessionState int

const (
	stateIdle sessionState = iota
	stateRequesting
	stateActive
)

const (
	transportClassic = iota
	transportLE
)

// General Inquiry Access Code.
var giac = [3]byte{0x33, 0x8b, 0x9e}

// Maximum inquiry length in 1.28 s units; the inquiry is re-issued on
// Inquiry Complete while the session is still open.
const inquiryLength = 0x30

const (
	scanInquiry = 0x01
	scanPage    = 0x02
)

// DiscoverySession is the ownership token for "discovery is active on
// this adapter". Closing it stops discovery on both transports.
type DiscoverySession struct {
	mgr  *DiscoveryManager
	once sync.Once
}

func (s *DiscoverySession) Close() {
	s.once.Do(func() {
		if s.mgr != nil {
			s.mgr.releaseDiscovery(s)
		}
	})
}

// DiscoverableSession is the advertising / inquiry-scan analogue.
type DiscoverableSession struct {
	mgr  *DiscoveryManager
	once sync.Once
}

func (s *DiscoverableSession) Close() {
	s.once.Do(func() {
		if s.mgr != nil {
			s.mgr.releaseDiscoverable(s)
		}
	})
}

// DiscoveryManager owns at most one discovery session and one
// discoverable session, each spanning the classic and LE transports.
type DiscoveryManager struct {
	cmd   commander
	cache *peer.Cache

	mu          sync.Mutex
	classic     bool // adapter has a BR/EDR radio
	connectable bool

	discState  [2]sessionState
	discCancel bool
	discSess   *DiscoverySession

	advState  [2]sessionState
	advCancel bool
	advSess   *DiscoverableSession
}

// NewDiscoveryManager wires the manager's event handlers into c.
// classic declares whether the adapter has a BR/EDR radio.
func NewDiscoveryManager(c commander, cache *peer.Cache, classic bool) *DiscoveryManager {
	m := &DiscoveryManager{cmd: c, cache: cache, classic: classic}
	c.Subscribe(evt.InquiryResultCode, m.handleInquiryResult)
	c.Subscribe(evt.InquiryCompleteCode, m.handleInquiryComplete)
	c.SubscribeLE(evt.LEAdvertisingReportSubCode, m.handleAdvertisingReport)
	return m
}

// Discovering reports whether a discovery session is active on any
// transport.
func (m *DiscoveryManager) Discovering() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discState[transportClassic] == stateActive || m.discState[transportLE] == stateActive
}

// Discoverable reports whether a discoverable session is active.
func (m *DiscoveryManager) Discoverable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.advState[transportClassic] == stateActive || m.advState[transportLE] == stateActive
}

// CancelDiscovery marks a discovery start still in the Requesting stage
// as canceled; the late-arriving session is discarded and its callback
// reports CANCELED. A discoverable start in flight is untouched.
func (m *DiscoveryManager) CancelDiscovery() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.discState[transportClassic] == stateRequesting || m.discState[transportLE] == stateRequesting {
		m.discCancel = true
	}
}

// CancelDiscoverable is the discoverable analogue of CancelDiscovery.
func (m *DiscoveryManager) CancelDiscoverable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.advState[transportClassic] == stateRequesting || m.advState[transportLE] == stateRequesting {
		m.advCancel = true
	}
}

// RequestDiscovery starts discovery. On a dual adapter the classic
// inquiry is requested first and the LE scan only on its completion; cb
// fires once, after LE completes, with the session token. A request
// while one is requesting or active fails IN_PROGRESS.
func (m *DiscoveryManager) RequestDiscovery(cb func(*DiscoverySession, error)) {
	m.mu.Lock()
	if m.discState[transportClassic] != stateIdle || m.discState[transportLE] != stateIdle {
		m.mu.Unlock()
		cb(nil, bthost.NewError(bthost.CodeInProgress, "discovery already in progress"))
		return
	}
	m.discCancel = false
	if m.classic {
		m.discState[transportClassic] = stateRequesting
		m.mu.Unlock()
		m.startInquiry(cb)
		return
	}
	m.discState[transportLE] = stateRequesting
	m.mu.Unlock()
	m.startScan(cb)
}

func (m *DiscoveryManager) startInquiry(cb func(*DiscoverySession, error)) {
	c := &cmd.Inquiry{LAP: giac, InquiryLen: inquiryLength}
	if _, err := m.cmd.SendCommand(c, func(err error, ret []byte) {
		m.finishInquiryStart(statusErr(err, ret), cb)
	}); err != nil {
		m.finishInquiryStart(err, cb)
	}
}

func (m *DiscoveryManager) finishInquiryStart(err error, cb func(*DiscoverySession, error)) {
	m.mu.Lock()
	if err != nil {
		m.discState[transportClassic] = stateIdle
		m.mu.Unlock()
		cb(nil, errors.Wrap(err, "can't start inquiry"))
		return
	}
	if m.discCancel {
		m.discState[transportClassic] = stateIdle
		m.mu.Unlock()
		m.cmd.SendCommand(&cmd.InquiryCancel{}, logCompletion("inquiry cancel"))
		cb(nil, bthost.NewError(bthost.CodeCanceled, "discovery canceled"))
		return
	}
	m.discState[transportClassic] = stateActive
	m.discState[transportLE] = stateRequesting
	m.mu.Unlock()
	m.startScan(cb)
}

func (m *DiscoveryManager) startScan(cb func(*DiscoverySession, error)) {
	params := &cmd.LESetScanParameters{
		LEScanType:     0x01, // active scanning
		LEScanInterval: 0x0010,
		LEScanWindow:   0x0010,
	}
	if _, err := m.cmd.SendCommand(params, func(err error, ret []byte) {
		if err := statusErr(err, ret); err != nil {
			m.finishScanStart(err, cb)
			return
		}
		enable := &cmd.LESetScanEnable{LEScanEnable: 1, FilterDuplicates: 1}
		if _, err := m.cmd.SendCommand(enable, func(err error, ret []byte) {
			m.finishScanStart(statusErr(err, ret), cb)
		}); err != nil {
			m.finishScanStart(err, cb)
		}
	}); err != nil {
		m.finishScanStart(err, cb)
	}
}

func (m *DiscoveryManager) finishScanStart(err error, cb func(*DiscoverySession, error)) {
	m.mu.Lock()
	classicUp := m.discState[transportClassic] == stateActive

	if err != nil || m.discCancel {
		canceled := err == nil
		m.discState[transportClassic] = stateIdle
		m.discState[transportLE] = stateIdle
		m.mu.Unlock()

		if classicUp {
			m.cmd.SendCommand(&cmd.InquiryCancel{}, logCompletion("inquiry cancel"))
		}
		if canceled {
			m.cmd.SendCommand(&cmd.LESetScanEnable{}, logCompletion("scan disable"))
			cb(nil, bthost.NewError(bthost.CodeCanceled, "discovery canceled"))
		} else {
			cb(nil, errors.Wrap(err, "can't start LE scan"))
		}
		return
	}

	m.discState[transportLE] = stateActive
	s := &DiscoverySession{mgr: m}
	m.discSess = s
	m.mu.Unlock()
	cb(s, nil)
}

func (m *DiscoveryManager) releaseDiscovery(s *DiscoverySession) {
	m.mu.Lock()
	if m.discSess != s {
		m.mu.Unlock()
		return
	}
	m.discSess = nil
	classicUp := m.discState[transportClassic] == stateActive
	leUp := m.discState[transportLE] == stateActive
	m.discState[transportClassic] = stateIdle
	m.discState[transportLE] = stateIdle
	m.mu.Unlock()

	if classicUp {
		m.cmd.SendCommand(&cmd.InquiryCancel{}, logCompletion("inquiry cancel"))
	}
	if leUp {
		m.cmd.SendCommand(&cmd.LESetScanEnable{}, logCompletion("scan disable"))
	}
}

// RequestDiscoverable makes the adapter visible: inquiry scan on
// classic, advertising on LE. Same sequential composition and
// cancellation rules as RequestDiscovery.
func (m *DiscoveryManager) RequestDiscoverable(cb func(*DiscoverableSession, error)) {
	m.mu.Lock()
	if m.advState[transportClassic] != stateIdle || m.advState[transportLE] != stateIdle {
		m.mu.Unlock()
		cb(nil, bthost.NewError(bthost.CodeInProgress, "discoverable already in progress"))
		return
	}
	m.advCancel = false
	if m.classic {
		m.advState[transportClassic] = stateRequesting
		mask := m.scanMaskLocked() | scanInquiry
		m.mu.Unlock()
		m.startInquiryScan(mask, cb)
		return
	}
	m.advState[transportLE] = stateRequesting
	m.mu.Unlock()
	m.startAdvertising(cb)
}

func (m *DiscoveryManager) startInquiryScan(mask uint8, cb func(*DiscoverableSession, error)) {
	c := &cmd.WriteScanEnable{ScanEnable: mask}
	if _, err := m.cmd.SendCommand(c, func(err error, ret []byte) {
		m.finishInquiryScanStart(statusErr(err, ret), cb)
	}); err != nil {
		m.finishInquiryScanStart(err, cb)
	}
}

func (m *DiscoveryManager) finishInquiryScanStart(err error, cb func(*DiscoverableSession, error)) {
	m.mu.Lock()
	if err != nil {
		m.advState[transportClassic] = stateIdle
		m.mu.Unlock()
		cb(nil, errors.Wrap(err, "can't enable inquiry scan"))
		return
	}
	if m.advCancel {
		m.advState[transportClassic] = stateIdle
		mask := m.scanMaskLocked()
		m.mu.Unlock()
		m.cmd.SendCommand(&cmd.WriteScanEnable{ScanEnable: mask}, logCompletion("scan enable rollback"))
		cb(nil, bthost.NewError(bthost.CodeCanceled, "discoverable canceled"))
		return
	}
	m.advState[transportClassic] = stateActive
	m.advState[transportLE] = stateRequesting
	m.mu.Unlock()
	m.startAdvertising(cb)
}

func (m *DiscoveryManager) startAdvertising(cb func(*DiscoverableSession, error)) {
	c := &cmd.LESetAdvertiseEnable{AdvertisingEnable: 1}
	if _, err := m.cmd.SendCommand(c, func(err error, ret []byte) {
		m.finishAdvertisingStart(statusErr(err, ret), cb)
	}); err != nil {
		m.finishAdvertisingStart(err, cb)
	}
}

func (m *DiscoveryManager) finishAdvertisingStart(err error, cb func(*DiscoverableSession, error)) {
	m.mu.Lock()
	classicUp := m.advState[transportClassic] == stateActive

	if err != nil || m.advCancel {
		canceled := err == nil
		m.advState[transportClassic] = stateIdle
		m.advState[transportLE] = stateIdle
		mask := m.scanMaskLocked()
		m.mu.Unlock()

		if classicUp {
			m.cmd.SendCommand(&cmd.WriteScanEnable{ScanEnable: mask}, logCompletion("scan enable rollback"))
		}
		if canceled {
			m.cmd.SendCommand(&cmd.LESetAdvertiseEnable{}, logCompletion("advertising disable"))
			cb(nil, bthost.NewError(bthost.CodeCanceled, "discoverable canceled"))
		} else {
			cb(nil, errors.Wrap(err, "can't enable advertising"))
		}
		return
	}

	m.advState[transportLE] = stateActive
	s := &DiscoverableSession{mgr: m}
	m.advSess = s
	m.mu.Unlock()
	cb(s, nil)
}

func (m *DiscoveryManager) releaseDiscoverable(s *DiscoverableSession) {
	m.mu.Lock()
	if m.advSess != s {
		m.mu.Unlock()
		return
	}
	m.advSess = nil
	classicUp := m.advState[transportClassic] == stateActive
	leUp := m.advState[transportLE] == stateActive
	m.advState[transportClassic] = stateIdle
	m.advState[transportLE] = stateIdle
	mask := m.scanMaskLocked()
	m.mu.Unlock()

	if classicUp {
		m.cmd.SendCommand(&cmd.WriteScanEnable{ScanEnable: mask}, logCompletion("inquiry scan disable"))
	}
	if leUp {
		m.cmd.SendCommand(&cmd.LESetAdvertiseEnable{}, logCompletion("advertising disable"))
	}
}

// SetConnectable toggles page scan so remote devices can (or cannot)
// initiate classic connections.
func (m *DiscoveryManager) SetConnectable(v bool) error {
	m.mu.Lock()
	m.connectable = v
	if !m.classic {
		m.mu.Unlock()
		return nil
	}
	mask := m.scanMaskLocked()
	if m.advState[transportClassic] == stateActive {
		mask |= scanInquiry
	}
	m.mu.Unlock()

	if err := m.cmd.Send(&cmd.WriteScanEnable{ScanEnable: mask}, nil); err != nil {
		return errors.Wrap(err, "can't write scan enable")
	}
	return nil
}

// scanMaskLocked is the page-scan half of the Write Scan Enable mask.
func (m *DiscoveryManager) scanMaskLocked() uint8 {
	if m.connectable {
		return scanPage
	}
	return 0
}

func (m *DiscoveryManager) handleInquiryResult(b []byte) error {
	e := evt.InquiryResult(b)
	for i := 0; i < int(e.NumResponses()); i++ {
		bd, err := e.BDADDR(i)
		if err != nil {
			return errors.Wrap(err, "truncated inquiry result")
		}
		m.cache.OnInquiryResult(wireAddr(bthost.AddrTypeBREDR, bd), "")
	}
	return nil
}

func (m *DiscoveryManager) handleInquiryComplete(b []byte) error {
	e := evt.InquiryComplete(b)
	if e.Status() != 0x00 {
		logger.Warnf("inquiry ended: %v", statusErr(nil, []byte{e.Status()}))
	}

	// the controller terminates inquiry on its own after InquiryLen;
	// keep it running while the session is open
	m.mu.Lock()
	active := m.discState[transportClassic] == stateActive
	m.mu.Unlock()
	if active {
		m.cmd.SendCommand(&cmd.Inquiry{LAP: giac, InquiryLen: inquiryLength}, logCompletion("inquiry restart"))
	}
	return nil
}

func (m *DiscoveryManager) handleAdvertisingReport(b []byte) error {
	e := evt.LEAdvertisingReport(b)
	for i := 0; i < int(e.NumReports()); i++ {
		bd, err := e.Address(i)
		if err != nil {
			return errors.Wrap(err, "truncated advertising report")
		}
		at, _ := e.AddressType(i)
		t := bthost.AddrTypeLEPublic
		if at == 0x01 {
			t = bthost.AddrTypeLERandom
		}

		et, _ := e.EventType(i)
		connectable := et == 0x00 || et == 0x01 // ADV_IND, ADV_DIRECT_IND

		var name string
		if data, err := e.Data(i); err == nil && len(data) > 0 {
			rec, perr := parser.Parse(data)
			if perr != nil {
				logger.Debugf("advertising data from %v: %v", wireAddr(t, bd), perr)
			}
			if rec != nil {
				name = rec.LocalName
			}
		}

		m.cache.OnLEObservation(wireAddr(t, bd), name, connectable)
	}
	return nil
}
