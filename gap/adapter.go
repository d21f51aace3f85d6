package gap

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci"
	"github.com/go-bt/bthost/hci/cmd"
	"github.com/go-bt/bthost/peer"
)

// Adapter owns the controller transport, the peer cache and the
// discovery, connection and pairing managers. It implements
// bthost.AdapterOption so the root-package Opt* constructors configure
// it directly.
type Adapter struct {
	hci *hci.HCI

	cache     *peer.Cache
	discovery *DiscoveryManager
	conns     *ConnectionManager
	pairing   *PairingDispatcher

	mu          sync.Mutex
	started     bool
	classic     bool
	name        string
	class       bthost.DeviceClass
	bondPath    string
	connectable bool
}

// NewAdapter builds an adapter from the given options. Call Start to
// open the transport and power the controller up.
func NewAdapter(opts ...bthost.Option) (*Adapter, error) {
	a := &Adapter{hci: hci.New(), classic: true}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, errors.Wrap(err, "can't apply option")
		}
	}
	return a, nil
}

// SetTransportHCISocket selects the raw socket transport.
func (a *Adapter) SetTransportHCISocket(id int) error {
	a.hci.SetTransportHCISocket(id)
	return nil
}

// SetTransportH4Socket selects the H4 TCP socket transport.
func (a *Adapter) SetTransportH4Socket(addr string, timeout time.Duration) error {
	a.hci.SetTransportH4Socket(addr, timeout)
	return nil
}

// SetTransportH4Uart selects the H4 UART transport.
func (a *Adapter) SetTransportH4Uart(path string) error {
	a.hci.SetTransportH4Uart(path)
	return nil
}

// SetBondStorePath sets the JSON file bonds are persisted to.
func (a *Adapter) SetBondStorePath(path string) error {
	a.mu.Lock()
	a.bondPath = path
	a.mu.Unlock()
	return nil
}

// SetErrorHandler installs the sink for asynchronous transport errors.
func (a *Adapter) SetErrorHandler(handler func(error)) error {
	a.hci.SetErrorHandler(handler)
	return nil
}

// SetLocalName sets the adapter's name. Before Start it is only
// recorded; afterwards it is written to the controller.
func (a *Adapter) SetLocalName(name string) error {
	a.mu.Lock()
	a.name = name
	started := a.started
	a.mu.Unlock()

	if !started {
		return nil
	}
	c := &cmd.WriteLocalName{}
	copy(c.LocalName[:], name)
	if err := a.hci.Send(c, nil); err != nil {
		return errors.Wrap(err, "can't write local name")
	}
	return nil
}

// SetDeviceClass sets the Class of Device. Values beyond 24 bits are
// INVALID_ARGUMENTS.
func (a *Adapter) SetDeviceClass(class bthost.DeviceClass) error {
	if !class.Valid() {
		return bthost.NewErrorf(bthost.CodeInvalidArguments, "device class 0x%x out of range", uint32(class))
	}

	a.mu.Lock()
	a.class = class
	started := a.started
	classic := a.classic
	a.mu.Unlock()

	if !started {
		return nil
	}
	if !classic {
		return bthost.NewError(bthost.CodeNotSupported, "no BR/EDR radio")
	}
	return a.writeDeviceClass(class)
}

func (a *Adapter) writeDeviceClass(class bthost.DeviceClass) error {
	c := &cmd.WriteClassOfDevice{
		ClassOfDevice: [3]byte{byte(class), byte(class >> 8), byte(class >> 16)},
	}
	if err := a.hci.Send(c, nil); err != nil {
		return errors.Wrap(err, "can't write class of device")
	}
	return nil
}

// Start opens the transport, runs the power-up sequence and restores
// persisted bonds.
func (a *Adapter) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return bthost.NewError(bthost.CodeBadState, "adapter already started")
	}
	a.started = true
	path := a.bondPath
	name := a.name
	class := a.class
	classic := a.classic
	a.mu.Unlock()

	var store *peer.Store
	if path != "" {
		store = peer.NewStore(path)
	}
	a.cache = peer.NewCache(store)
	a.discovery = NewDiscoveryManager(a.hci, a.cache, classic)
	a.conns = NewConnectionManager(a.hci, a.cache, classic)

	pairing, err := NewPairingDispatcher(a.hci, a.cache)
	if err != nil {
		return errors.Wrap(err, "can't set up pairing")
	}
	a.pairing = pairing
	a.pairing.SetHandleResolver(a.conns.PeerByHandle)

	if err := a.hci.Init(); err != nil {
		return errors.Wrap(err, "can't initialize controller")
	}
	if err := a.cache.LoadStore(); err != nil {
		logger.Warnf("can't restore bonds: %v", err)
	}

	if name != "" {
		if err := a.SetLocalName(name); err != nil {
			return err
		}
	}
	if class != 0 && classic {
		if err := a.writeDeviceClass(class); err != nil {
			return err
		}
	}
	return nil
}

// Close shuts the transport down. Outstanding command callbacks fail
// terminally.
func (a *Adapter) Close() error {
	if a.discovery != nil {
		a.discovery.CancelDiscovery()
		a.discovery.CancelDiscoverable()
	}
	return a.hci.Close()
}

// HCI exposes the command transport, e.g. for emulated controllers.
func (a *Adapter) HCI() *hci.HCI { return a.hci }

// Cache returns the peer registry.
func (a *Adapter) Cache() *peer.Cache { return a.cache }

// Connections returns the connection manager.
func (a *Adapter) Connections() *ConnectionManager { return a.conns }

// Pairing returns the pairing dispatcher.
func (a *Adapter) Pairing() *PairingDispatcher { return a.pairing }

// Info describes the adapter and its current top-level state.
func (a *Adapter) Info() bthost.AdapterInfo {
	a.mu.Lock()
	name := a.name
	classic := a.classic
	a.mu.Unlock()

	tech := bthost.TechnologyLowEnergy
	if classic {
		tech = bthost.TechnologyDualMode
	}

	addr := a.hci.Addr()
	var discovering, discoverable bool
	if a.discovery != nil {
		discovering = a.discovery.Discovering()
		discoverable = a.discovery.Discoverable()
	}
	return bthost.AdapterInfo{
		Identifier: fmt.Sprintf("bt-host-%s", addr),
		Address:    addr.String(),
		Technology: tech,
		State: bthost.AdapterState{
			LocalName:    name,
			Discoverable: discoverable,
			Discovering:  discovering,
		},
	}
}

// RequestDiscovery starts a discovery session.
func (a *Adapter) RequestDiscovery(cb func(*DiscoverySession, error)) {
	a.discovery.RequestDiscovery(cb)
}

// RequestDiscoverable starts a discoverable session.
func (a *Adapter) RequestDiscoverable(cb func(*DiscoverableSession, error)) {
	a.discovery.RequestDiscoverable(cb)
}

// CancelDiscovery discards a discovery start still in flight.
func (a *Adapter) CancelDiscovery() {
	a.discovery.CancelDiscovery()
}

// CancelDiscoverable discards a discoverable start still in flight.
func (a *Adapter) CancelDiscoverable() {
	a.discovery.CancelDiscoverable()
}

// SetConnectable controls whether remote devices can connect to us.
func (a *Adapter) SetConnectable(v bool) error {
	a.mu.Lock()
	a.connectable = v
	a.mu.Unlock()

	a.conns.SetAcceptIncoming(v)
	return a.discovery.SetConnectable(v)
}

// Connect establishes a link to id, dispatching LE or classic by the
// peer's cached capabilities.
func (a *Adapter) Connect(id bthost.PeerID, cb func(*ConnectionRef, error)) {
	a.conns.Connect(id, cb)
}

// Forget disconnects id everywhere and removes it from the cache.
func (a *Adapter) Forget(id bthost.PeerID, cb func(error)) {
	a.conns.Forget(id, cb)
}

// SetPairingDelegate replaces the pairing delegate.
func (a *Adapter) SetPairingDelegate(ioCap bthost.IOCapability, delegate bthost.PairingDelegate) {
	a.pairing.SetDelegate(ioCap, delegate)
}
