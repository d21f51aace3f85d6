package gap

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci/cmd"
	"github.com/go-bt/bthost/hci/evt"
	"github.com/go-bt/bthost/peer"
)

const (
	roleSlave = 0x01

	// Remote User Terminated Connection
	reasonRemoteUserTerminated = 0x13
)

// ConnectionRef represents one active logical link to a peer. The
// closed callback fires exactly once, when the underlying link goes
// down, regardless of which side tore it down.
type ConnectionRef struct {
	mgr    *ConnectionManager
	peerID bthost.PeerID
	tech   bthost.Technology
	handle uint16

	mu     sync.Mutex
	closed bool
	onDown func()
}

func (r *ConnectionRef) PeerID() bthost.PeerID         { return r.peerID }
func (r *ConnectionRef) Technology() bthost.Technology { return r.tech }
func (r *ConnectionRef) Handle() uint16                { return r.handle }

// SetClosedCallback installs the one-shot link-loss notification.
func (r *ConnectionRef) SetClosedCallback(fn func()) {
	r.mu.Lock()
	already := r.closed
	r.onDown = fn
	r.mu.Unlock()
	if already && fn != nil {
		fn()
	}
}

// Close requests a disconnect of the underlying link. Closing a ref
// whose link is already down is a no-op.
func (r *ConnectionRef) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	if r.mgr != nil {
		r.mgr.disconnectHandle(r.handle)
	}
}

func (r *ConnectionRef) markClosed() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	fn := r.onDown
	r.mu.Unlock()
	if fn != nil {
		fn()
	}
}

type peerKey struct {
	id   bthost.PeerID
	tech bthost.Technology
}

type pendingConn struct {
	id   bthost.PeerID
	tech bthost.Technology
	cb   func(*ConnectionRef, error)
}

// ConnectionManager turns peer identifiers into active links and tracks
// the outstanding references.
type ConnectionManager struct {
	cmd   commander
	cache *peer.Cache

	mu             sync.Mutex
	classic        bool
	acceptIncoming bool
	byHandle       map[uint16]*ConnectionRef
	byPeer         map[peerKey]*ConnectionRef
	pending        map[string]*pendingConn // keyed by address
	forgets        map[bthost.PeerID]func(error)
}

// NewConnectionManager wires the manager's event handlers into c.
func NewConnectionManager(c commander, cache *peer.Cache, classic bool) *ConnectionManager {
	m := &ConnectionManager{
		cmd:      c,
		cache:    cache,
		classic:  classic,
		byHandle: make(map[uint16]*ConnectionRef),
		byPeer:   make(map[peerKey]*ConnectionRef),
		pending:  make(map[string]*pendingConn),
		forgets:  make(map[bthost.PeerID]func(error)),
	}
	c.Subscribe(evt.ConnectionCompleteCode, m.handleConnectionComplete)
	c.Subscribe(evt.ConnectionRequestCode, m.handleConnectionRequest)
	c.Subscribe(evt.DisconnectionCompleteCode, m.handleDisconnectionComplete)
	c.SubscribeLE(evt.LEConnectionCompleteSubCode, m.handleLEConnectionComplete)
	return m
}

// SetAcceptIncoming controls whether incoming classic connection
// requests are accepted.
func (m *ConnectionManager) SetAcceptIncoming(v bool) {
	m.mu.Lock()
	m.acceptIncoming = v
	m.mu.Unlock()
}

// PeerByHandle resolves a connection handle to the peer it belongs to.
func (m *ConnectionManager) PeerByHandle(handle uint16) (bthost.PeerID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byHandle[handle]; ok {
		return r.peerID, true
	}
	return 0, false
}

// Ref returns the live reference for a peer on the given transport.
func (m *ConnectionManager) Ref(id bthost.PeerID, tech bthost.Technology) *ConnectionRef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byPeer[peerKey{id, tech}]
}

// Connect resolves the peer and dispatches by its cached capabilities:
// peers that advertise LE support connect over LE, everything else over
// classic. cb fires exactly once.
func (m *ConnectionManager) Connect(id bthost.PeerID, cb func(*ConnectionRef, error)) {
	p := m.cache.FindByID(id)
	if p == nil {
		cb(nil, bthost.NewErrorf(bthost.CodeNotFound, "unknown peer %s", id))
		return
	}
	if p.LE() {
		m.ConnectLowEnergy(id, cb)
		return
	}
	m.ConnectBrEdr(id, cb)
}

// ConnectLowEnergy establishes an LE link to id.
func (m *ConnectionManager) ConnectLowEnergy(id bthost.PeerID, cb func(*ConnectionRef, error)) {
	p := m.cache.FindByID(id)
	if p == nil {
		cb(nil, bthost.NewErrorf(bthost.CodeNotFound, "unknown peer %s", id))
		return
	}

	m.mu.Lock()
	if r := m.byPeer[peerKey{id, bthost.TechnologyLowEnergy}]; r != nil {
		m.mu.Unlock()
		cb(r, nil)
		return
	}
	if _, ok := m.pending[p.Addr().Value]; ok {
		m.mu.Unlock()
		cb(nil, bthost.NewErrorf(bthost.CodeInProgress, "connect to %s already in progress", id))
		return
	}
	pc := &pendingConn{id: id, tech: bthost.TechnologyLowEnergy, cb: cb}
	m.pending[p.Addr().Value] = pc
	m.mu.Unlock()

	addrType := uint8(0x00)
	if p.Addr().Type == bthost.AddrTypeLERandom {
		addrType = 0x01
	}
	var bd [6]byte
	copy(bd[:], p.Addr().Bytes())

	c := &cmd.LECreateConnection{
		LEScanInterval:     0x0010,
		LEScanWindow:       0x0010,
		PeerAddressType:    addrType,
		PeerAddress:        bd,
		ConnIntervalMin:    0x0018,
		ConnIntervalMax:    0x0028,
		SupervisionTimeout: 0x002a,
	}
	if _, err := m.cmd.SendCommand(c, func(err error, ret []byte) {
		// Command Status only confirms the attempt started; the link
		// arrives with LE Connection Complete.
		if err := statusErr(err, ret); err != nil {
			m.failPending(p.Addr(), errors.Wrap(err, "can't create LE connection"))
		}
	}); err != nil {
		m.failPending(p.Addr(), errors.Wrap(err, "can't create LE connection"))
	}
}

// ConnectBrEdr establishes a classic link to id.
func (m *ConnectionManager) ConnectBrEdr(id bthost.PeerID, cb func(*ConnectionRef, error)) {
	if !m.classic {
		cb(nil, bthost.NewError(bthost.CodeNotSupported, "no BR/EDR radio"))
		return
	}
	p := m.cache.FindByID(id)
	if p == nil {
		cb(nil, bthost.NewErrorf(bthost.CodeNotFound, "unknown peer %s", id))
		return
	}

	m.mu.Lock()
	if r := m.byPeer[peerKey{id, bthost.TechnologyClassic}]; r != nil {
		m.mu.Unlock()
		cb(r, nil)
		return
	}
	if _, ok := m.pending[p.Addr().Value]; ok {
		m.mu.Unlock()
		cb(nil, bthost.NewErrorf(bthost.CodeInProgress, "connect to %s already in progress", id))
		return
	}
	pc := &pendingConn{id: id, tech: bthost.TechnologyClassic, cb: cb}
	m.pending[p.Addr().Value] = pc
	m.mu.Unlock()

	var bd [6]byte
	copy(bd[:], p.Addr().Bytes())

	c := &cmd.CreateConnection{
		BDADDR:          bd,
		PacketType:      0xcc18, // DM1/DH1/DM3/DH3/DM5/DH5
		AllowRoleSwitch: 0x01,
	}
	if _, err := m.cmd.SendCommand(c, func(err error, ret []byte) {
		if err := statusErr(err, ret); err != nil {
			m.failPending(p.Addr(), errors.Wrap(err, "can't create connection"))
		}
	}); err != nil {
		m.failPending(p.Addr(), errors.Wrap(err, "can't create connection"))
	}
}

// Disconnect tears down every link to id. Disconnecting a peer with no
// links is not an error.
func (m *ConnectionManager) Disconnect(id bthost.PeerID) error {
	m.mu.Lock()
	var handles []uint16
	for _, tech := range []bthost.Technology{bthost.TechnologyLowEnergy, bthost.TechnologyClassic} {
		if r := m.byPeer[peerKey{id, tech}]; r != nil {
			handles = append(handles, r.handle)
		}
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.disconnectHandle(h)
	}
	return nil
}

// Forget disconnects both transports and then removes the peer from the
// cache. Disconnecting an already-disconnected transport is not an
// error; cb fires once the peer is gone (or with the failure).
func (m *ConnectionManager) Forget(id bthost.PeerID, cb func(error)) {
	p := m.cache.FindByID(id)
	if p == nil {
		cb(bthost.NewErrorf(bthost.CodeNotFound, "unknown peer %s", id))
		return
	}

	if !p.Connected() {
		if !m.cache.RemoveDisconnectedPeer(id) {
			cb(bthost.NewErrorf(bthost.CodeBadState, "peer %s is still connected", id))
			return
		}
		cb(nil)
		return
	}

	m.mu.Lock()
	if _, ok := m.forgets[id]; ok {
		m.mu.Unlock()
		cb(bthost.NewErrorf(bthost.CodeInProgress, "forget of %s already in progress", id))
		return
	}
	m.forgets[id] = cb
	le := m.byPeer[peerKey{id, bthost.TechnologyLowEnergy}]
	br := m.byPeer[peerKey{id, bthost.TechnologyClassic}]
	m.mu.Unlock()

	if le != nil {
		if err := m.sendDisconnect(le.handle); err != nil {
			m.failForget(id, errors.Wrap(err, "LE"))
			return
		}
	}
	if br != nil {
		if err := m.sendDisconnect(br.handle); err != nil {
			m.failForget(id, errors.Wrap(err, "BR/EDR"))
			return
		}
	}
}

func (m *ConnectionManager) failForget(id bthost.PeerID, err error) {
	m.mu.Lock()
	cb := m.forgets[id]
	delete(m.forgets, id)
	m.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (m *ConnectionManager) disconnectHandle(handle uint16) {
	if err := m.sendDisconnect(handle); err != nil {
		logger.Errorf("can't disconnect handle %d: %v", handle, err)
	}
}

func (m *ConnectionManager) sendDisconnect(handle uint16) error {
	c := &cmd.Disconnect{ConnectionHandle: handle, Reason: reasonRemoteUserTerminated}
	_, err := m.cmd.SendCommand(c, logCompletion("disconnect"))
	return err
}

func (m *ConnectionManager) failPending(addr bthost.Addr, err error) {
	m.mu.Lock()
	pc := m.pending[addr.Value]
	delete(m.pending, addr.Value)
	m.mu.Unlock()
	if pc != nil {
		pc.cb(nil, err)
	}
}

// install records a newly established link and completes a pending
// connect if one is waiting on it.
func (m *ConnectionManager) install(id bthost.PeerID, tech bthost.Technology, handle uint16, addr bthost.Addr) {
	r := &ConnectionRef{mgr: m, peerID: id, tech: tech, handle: handle}

	m.mu.Lock()
	m.byHandle[handle] = r
	m.byPeer[peerKey{id, tech}] = r
	pc := m.pending[addr.Value]
	delete(m.pending, addr.Value)
	m.mu.Unlock()

	m.cache.SetConnected(id, tech, true)
	logger.Debugf("%s link up: peer %s handle %d", tech, id, handle)

	if pc != nil {
		pc.cb(r, nil)
	}
}

func (m *ConnectionManager) handleLEConnectionComplete(b []byte) error {
	e := evt.LEConnectionComplete(b)
	t := bthost.AddrTypeLEPublic
	if e.PeerAddressType() == 0x01 {
		t = bthost.AddrTypeLERandom
	}
	addr := wireAddr(t, e.PeerAddress())

	if e.Status() != 0x00 {
		m.failPending(addr, errors.Wrap(statusErr(nil, []byte{e.Status()}), "LE connection failed"))
		return nil
	}

	p := m.cache.FindByAddress(addr)
	if p == nil {
		// remote-initiated link from a device we have never observed
		p = m.cache.OnLEObservation(addr, "", true)
	}
	m.install(p.ID(), bthost.TechnologyLowEnergy, e.ConnectionHandle(), addr)
	return nil
}

func (m *ConnectionManager) handleConnectionComplete(b []byte) error {
	e := evt.ConnectionComplete(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())

	if e.Status() != 0x00 {
		m.failPending(addr, errors.Wrap(statusErr(nil, []byte{e.Status()}), "connection failed"))
		return nil
	}
	if e.LinkType() != 0x01 { // ACL
		return nil
	}

	p := m.cache.FindByAddress(addr)
	if p == nil {
		p = m.cache.OnInquiryResult(addr, "")
	}
	m.install(p.ID(), bthost.TechnologyClassic, e.ConnectionHandle(), addr)
	return nil
}

func (m *ConnectionManager) handleConnectionRequest(b []byte) error {
	e := evt.ConnectionRequest(b)

	m.mu.Lock()
	accept := m.acceptIncoming
	m.mu.Unlock()

	if !accept {
		c := &cmd.RejectConnectionRequest{BDADDR: e.BDADDR(), Reason: 0x0f}
		m.cmd.SendCommand(c, logCompletion("reject connection"))
		return nil
	}
	c := &cmd.AcceptConnectionRequest{BDADDR: e.BDADDR(), Role: roleSlave}
	m.cmd.SendCommand(c, logCompletion("accept connection"))
	return nil
}

func (m *ConnectionManager) handleDisconnectionComplete(b []byte) error {
	e := evt.DisconnectionComplete(b)

	m.mu.Lock()
	r := m.byHandle[e.ConnectionHandle()]
	if r != nil {
		delete(m.byHandle, r.handle)
		delete(m.byPeer, peerKey{r.peerID, r.tech})
	}
	m.mu.Unlock()
	if r == nil {
		return nil
	}

	m.cache.SetConnected(r.peerID, r.tech, false)
	logger.Debugf("%s link down: peer %s handle %d reason 0x%02x", r.tech, r.peerID, r.handle, e.Reason())
	r.markClosed()

	m.finishForget(r.peerID)
	return nil
}

// finishForget completes a pending Forget once the peer has no links
// left.
func (m *ConnectionManager) finishForget(id bthost.PeerID) {
	m.mu.Lock()
	cb, ok := m.forgets[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	p := m.cache.FindByID(id)
	if p != nil && p.Connected() {
		m.mu.Unlock()
		return
	}
	delete(m.forgets, id)
	m.mu.Unlock()

	if p != nil && !m.cache.RemoveDisconnectedPeer(id) {
		cb(bthost.NewErrorf(bthost.CodeBadState, "peer %s is still connected", id))
		return
	}
	cb(nil)
}
