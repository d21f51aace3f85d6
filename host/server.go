// Package host implements the per-client orchestration layer: one
// Server owns a client's view of the adapter (sessions, connections,
// pairing delegate) and translates cache changes into outbound events.
package host

import (
	"strings"
	"sync"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/gap"
	"github.com/go-bt/bthost/peer"
)

var logger = bthost.GetLogger().ChildLogger(map[string]interface{}{"pkg": "host"})

// Adapter is the slice of the adapter surface the server drives. It is
// satisfied by *gap.Adapter.
type Adapter interface {
	Info() bthost.AdapterInfo
	SetLocalName(name string) error
	SetDeviceClass(class bthost.DeviceClass) error
	SetConnectable(v bool) error
	RequestDiscovery(cb func(*gap.DiscoverySession, error))
	RequestDiscoverable(cb func(*gap.DiscoverableSession, error))
	CancelDiscovery()
	CancelDiscoverable()
	Connect(id bthost.PeerID, cb func(*gap.ConnectionRef, error))
	Forget(id bthost.PeerID, cb func(error))
	SetPairingDelegate(ioCap bthost.IOCapability, delegate bthost.PairingDelegate)
	Cache() *peer.Cache
}

// Server is the per-client façade. Completions delivered after Close
// observe the closed flag and report the shutdown instead of mutating
// released state.
type Server struct {
	adapter Adapter
	sink    bthost.EventSink

	mu                     sync.Mutex
	closed                 bool
	requestingDiscovery    bool
	requestingDiscoverable bool
	discSess               *gap.DiscoverySession
	advSess                *gap.DiscoverableSession
	conns                  map[bthost.PeerID]*gap.ConnectionRef
	delegateSet            bool

	children    map[uint64]*ChildServer
	nextChildID uint64
}

// NewServer binds a client's event sink to the adapter. Cache observers
// are forwarded as device events.
func NewServer(adapter Adapter, sink bthost.EventSink) *Server {
	s := &Server{
		adapter:  adapter,
		sink:     sink,
		conns:    make(map[bthost.PeerID]*gap.ConnectionRef),
		children: make(map[uint64]*ChildServer),
	}

	cache := adapter.Cache()
	cache.SetUpdatedCallback(func(p *peer.Peer) {
		if s.isClosed() {
			return
		}
		sink.OnDeviceUpdated(p.Device())
	})
	cache.SetRemovedCallback(func(id bthost.PeerID) {
		if s.isClosed() {
			return
		}
		sink.OnDeviceRemoved(id.String())
	})
	cache.SetBondedCallback(func(p *peer.Peer) {
		if s.isClosed() {
			return
		}
		sink.OnNewBondingData(p.BondingData())
	})
	return s
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func errClosed() error {
	return bthost.NewError(bthost.CodeFailed, "host server closed")
}

func (s *Server) emit(diff bthost.AdapterStateDiff) {
	if diff.Empty() {
		return
	}
	s.sink.OnAdapterStateChanged(diff)
}

// GetInfo returns the adapter descriptor with its current state.
func (s *Server) GetInfo() bthost.AdapterInfo {
	return s.adapter.Info()
}

// ListDevices snapshots every cached peer as a client-facing descriptor.
func (s *Server) ListDevices() []bthost.Device {
	var out []bthost.Device
	s.adapter.Cache().ForEach(func(p *peer.Peer) {
		out = append(out, p.Device())
	})
	return out
}

// SetLocalName renames the adapter and reports the change.
func (s *Server) SetLocalName(name string) error {
	if s.isClosed() {
		return errClosed()
	}
	if err := s.adapter.SetLocalName(name); err != nil {
		return err
	}
	s.emit(bthost.AdapterStateDiff{LocalName: bthost.StringPtr(name)})
	return nil
}

// SetDeviceClass sets the classic Class of Device.
func (s *Server) SetDeviceClass(class bthost.DeviceClass) error {
	if s.isClosed() {
		return errClosed()
	}
	return s.adapter.SetDeviceClass(class)
}

// SetConnectable controls whether remote devices may connect to us.
func (s *Server) SetConnectable(v bool) error {
	if s.isClosed() {
		return errClosed()
	}
	return s.adapter.SetConnectable(v)
}

// StartDiscovery starts a discovery session for this client. cb fires
// exactly once; a second start while one is requested or active fails
// IN_PROGRESS.
func (s *Server) StartDiscovery(cb func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cb(errClosed())
		return
	}
	if s.requestingDiscovery || s.discSess != nil {
		s.mu.Unlock()
		cb(bthost.NewError(bthost.CodeInProgress, "discovery already in progress"))
		return
	}
	s.requestingDiscovery = true
	s.mu.Unlock()

	s.adapter.RequestDiscovery(func(sess *gap.DiscoverySession, err error) {
		s.mu.Lock()
		s.requestingDiscovery = false
		if s.closed {
			s.mu.Unlock()
			if sess != nil {
				sess.Close()
			}
			cb(errClosed())
			return
		}
		if err != nil {
			s.mu.Unlock()
			cb(err)
			return
		}
		if sess == nil {
			panic("discovery manager reported success without a session")
		}
		s.discSess = sess
		s.mu.Unlock()

		s.emit(bthost.AdapterStateDiff{Discovering: bthost.BoolPtr(true)})
		cb(nil)
	})
}

// StopDiscovery ends this client's discovery session. Stopping with
// nothing started is BAD_STATE; stopping while the start is still in
// flight cancels it.
func (s *Server) StopDiscovery() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errClosed()
	}
	if s.discSess == nil {
		requesting := s.requestingDiscovery
		s.mu.Unlock()
		if requesting {
			s.adapter.CancelDiscovery()
			return nil
		}
		return bthost.NewError(bthost.CodeBadState, "no discovery session in progress")
	}
	sess := s.discSess
	s.discSess = nil
	s.mu.Unlock()

	sess.Close()
	s.emit(bthost.AdapterStateDiff{Discovering: bthost.BoolPtr(false)})
	return nil
}

// SetDiscoverable makes the adapter visible to (or hides it from)
// scanning devices. cb fires exactly once.
func (s *Server) SetDiscoverable(v bool, cb func(error)) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cb(errClosed())
		return
	}

	if !v {
		sess := s.advSess
		s.advSess = nil
		requesting := s.requestingDiscoverable
		s.mu.Unlock()

		if sess == nil {
			if requesting {
				s.adapter.CancelDiscoverable()
			}
			cb(nil)
			return
		}
		sess.Close()
		s.emit(bthost.AdapterStateDiff{Discoverable: bthost.BoolPtr(false)})
		cb(nil)
		return
	}

	if s.requestingDiscoverable || s.advSess != nil {
		s.mu.Unlock()
		cb(bthost.NewError(bthost.CodeInProgress, "discoverable already in progress"))
		return
	}
	s.requestingDiscoverable = true
	s.mu.Unlock()

	s.adapter.RequestDiscoverable(func(sess *gap.DiscoverableSession, err error) {
		s.mu.Lock()
		s.requestingDiscoverable = false
		if s.closed {
			s.mu.Unlock()
			if sess != nil {
				sess.Close()
			}
			cb(errClosed())
			return
		}
		if err != nil {
			s.mu.Unlock()
			cb(err)
			return
		}
		if sess == nil {
			panic("discovery manager reported success without a session")
		}
		s.advSess = sess
		s.mu.Unlock()

		s.emit(bthost.AdapterStateDiff{Discoverable: bthost.BoolPtr(true)})
		cb(nil)
	})
}

// AddBondedDevices restores a batch of bonding records. Invalid records
// are skipped and collected; the call fails only if at least one record
// was rejected.
func (s *Server) AddBondedDevices(recs []bthost.BondingData) error {
	if s.isClosed() {
		return errClosed()
	}

	var failed []string
	for _, rec := range recs {
		if err := validateBond(rec); err != nil {
			logger.Warnf("rejecting bond %s: %v", rec.Identifier, err)
			failed = append(failed, rec.Identifier.String())
			continue
		}
		if err := s.adapter.Cache().AddBondedPeer(rec); err != nil {
			logger.Warnf("rejecting bond %s: %v", rec.Identifier, err)
			failed = append(failed, rec.Identifier.String())
		}
	}
	if len(failed) > 0 {
		return bthost.NewErrorf(bthost.CodeFailed, "can't add bonds: %s", strings.Join(failed, ", "))
	}
	return nil
}

func validateBond(rec bthost.BondingData) error {
	if rec.LE == nil && rec.BREDR == nil {
		return bthost.NewError(bthost.CodeInvalidArguments, "record carries no transport data")
	}
	if rec.LE != nil && rec.BREDR != nil && !rec.LE.IdentityAddr.SameDevice(rec.BREDR.Addr) {
		return bthost.NewErrorf(bthost.CodeInvalidArguments,
			"dual-mode addresses disagree: %s vs %s", rec.LE.IdentityAddr, rec.BREDR.Addr)
	}
	return nil
}

// Connect establishes a link to the peer named by its textual ID. cb
// fires exactly once.
func (s *Server) Connect(idStr string, cb func(error)) {
	id, err := bthost.ParsePeerID(idStr)
	if err != nil {
		cb(err)
		return
	}
	if s.isClosed() {
		cb(errClosed())
		return
	}

	s.adapter.Connect(id, func(r *gap.ConnectionRef, err error) {
		if err != nil {
			cb(err)
			return
		}
		if r == nil {
			panic("connection manager reported success without a connection")
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			r.Close()
			cb(errClosed())
			return
		}
		if _, ok := s.conns[id]; ok {
			s.mu.Unlock()
			logger.Warnf("already holding a connection to %s", id)
			cb(nil)
			return
		}
		s.conns[id] = r
		s.mu.Unlock()

		r.SetClosedCallback(func() {
			s.mu.Lock()
			delete(s.conns, id)
			s.mu.Unlock()
		})
		cb(nil)
	})
}

// Forget drops every link to the peer and removes it from the cache.
func (s *Server) Forget(idStr string, cb func(error)) {
	id, err := bthost.ParsePeerID(idStr)
	if err != nil {
		cb(err)
		return
	}
	if s.isClosed() {
		cb(errClosed())
		return
	}
	s.adapter.Forget(id, cb)
}

// SetPairingDelegate installs this client's pairing delegate.
func (s *Server) SetPairingDelegate(ioCap bthost.IOCapability, delegate bthost.PairingDelegate) {
	if s.isClosed() {
		return
	}
	s.mu.Lock()
	s.delegateSet = delegate != nil
	s.mu.Unlock()
	s.adapter.SetPairingDelegate(ioCap, delegate)
}

// Close releases everything the client holds: sessions, connection
// references, child servers and the pairing delegate. One consolidated
// state diff is emitted if anything observable changed. Close is
// idempotent and all later operations fail with the shutdown error.
func (s *Server) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	discSess := s.discSess
	advSess := s.advSess
	s.discSess = nil
	s.advSess = nil
	requestingDisc := s.requestingDiscovery
	requestingAdv := s.requestingDiscoverable
	conns := make([]*gap.ConnectionRef, 0, len(s.conns))
	for _, r := range s.conns {
		conns = append(conns, r)
	}
	s.conns = make(map[bthost.PeerID]*gap.ConnectionRef)
	children := make([]*ChildServer, 0, len(s.children))
	for _, c := range s.children {
		children = append(children, c)
	}
	s.children = make(map[uint64]*ChildServer)
	delegateSet := s.delegateSet
	s.delegateSet = false
	s.mu.Unlock()

	if requestingDisc {
		s.adapter.CancelDiscovery()
	}
	if requestingAdv {
		s.adapter.CancelDiscoverable()
	}
	var diff bthost.AdapterStateDiff
	if discSess != nil {
		discSess.Close()
		diff.Discovering = bthost.BoolPtr(false)
	}
	if advSess != nil {
		advSess.Close()
		diff.Discoverable = bthost.BoolPtr(false)
	}
	for _, r := range conns {
		r.Close()
	}
	for _, c := range children {
		c.release()
	}
	if delegateSet {
		s.adapter.SetPairingDelegate(bthost.IOCapNoInputNoOutput, nil)
	}
	s.emit(diff)
}
