package peer

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/go-bt/bthost"
)

var logger = bthost.GetLogger().ChildLogger(map[string]interface{}{"pkg": "peer"})

// Cache is the addressable registry of remote devices. Observer
// callbacks fire synchronously within the mutating call; subscribers
// must not re-enter the cache from them.
type Cache struct {
	mu     sync.Mutex
	peers  map[bthost.PeerID]*Peer
	byAddr map[string]bthost.PeerID
	nextID uint64

	store *Store

	updated func(*Peer)
	removed func(bthost.PeerID)
	bonded  func(*Peer)
}

// NewCache returns an empty cache. store may be nil, in which case
// bonds are not persisted.
func NewCache(store *Store) *Cache {
	return &Cache{
		peers:  make(map[bthost.PeerID]*Peer),
		byAddr: make(map[string]bthost.PeerID),
		store:  store,
	}
}

// SetUpdatedCallback registers the peer-updated observer.
func (c *Cache) SetUpdatedCallback(fn func(*Peer)) { c.updated = fn }

// SetRemovedCallback registers the peer-removed observer.
func (c *Cache) SetRemovedCallback(fn func(bthost.PeerID)) { c.removed = fn }

// SetBondedCallback registers the peer-bonded observer.
func (c *Cache) SetBondedCallback(fn func(*Peer)) { c.bonded = fn }

// FindByID returns the peer with the given ID, or nil.
func (c *Cache) FindByID(id bthost.PeerID) *Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peers[id]
}

// FindByAddress returns the peer known by addr, or nil. Transport is
// ignored; a dual-mode device has one record.
func (c *Cache) FindByAddress(addr bthost.Addr) *Peer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.byAddr[addr.Value]; ok {
		return c.peers[id]
	}
	return nil
}

// ForEach calls fn for every peer in a point-in-time snapshot.
// Mutating the cache during iteration is allowed; fn observes the
// snapshot taken at entry.
func (c *Cache) ForEach(fn func(*Peer)) {
	c.mu.Lock()
	snapshot := make([]*Peer, 0, len(c.peers))
	for _, p := range c.peers {
		snapshot = append(snapshot, p)
	}
	c.mu.Unlock()

	for _, p := range snapshot {
		fn(p)
	}
}

// Count returns the number of known peers.
func (c *Cache) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.peers)
}

// OnLEObservation records an LE advertisement or scan response from
// addr, creating the peer on first observation. Returns the peer.
func (c *Cache) OnLEObservation(addr bthost.Addr, name string, connectable bool) *Peer {
	c.mu.Lock()
	p, created := c.upsertLocked(addr)
	p.supportsLE = true
	p.connectable = connectable
	if name != "" {
		p.name = name
	}
	c.mu.Unlock()

	if created {
		logger.Debugf("new LE peer %s (%s)", p.id, addr)
	}
	c.notifyUpdated(p)
	return p
}

// OnInquiryResult records a classic inquiry response from addr.
func (c *Cache) OnInquiryResult(addr bthost.Addr, name string) *Peer {
	c.mu.Lock()
	p, created := c.upsertLocked(addr)
	p.supportsBREDR = true
	p.connectable = true
	if name != "" {
		p.name = name
	}
	c.mu.Unlock()

	if created {
		logger.Debugf("new BR/EDR peer %s (%s)", p.id, addr)
	}
	c.notifyUpdated(p)
	return p
}

// upsertLocked finds or creates the record for addr.
func (c *Cache) upsertLocked(addr bthost.Addr) (*Peer, bool) {
	if id, ok := c.byAddr[addr.Value]; ok {
		return c.peers[id], false
	}
	c.nextID++
	p := &Peer{id: bthost.PeerID(c.nextID), addr: addr}
	c.peers[p.id] = p
	c.byAddr[addr.Value] = p.id
	return p, true
}

// AddBondedPeer restores a bond record into the cache, e.g. at startup
// or through AddBondedDevices. The record must already be validated
// for cross-transport address consistency; the insert fails if the
// address or identifier is already claimed by a different peer.
func (c *Cache) AddBondedPeer(rec bthost.BondingData) error {
	addr, err := bondAddress(rec)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if _, ok := c.peers[rec.Identifier]; ok {
		c.mu.Unlock()
		return errors.Errorf("peer %s already exists", rec.Identifier)
	}
	if id, ok := c.byAddr[addr.Value]; ok {
		c.mu.Unlock()
		return errors.Errorf("address %s already owned by peer %s", addr, id)
	}

	p := &Peer{
		id:          rec.Identifier,
		addr:        addr,
		name:        rec.Name,
		bonded:      true,
		connectable: true,
		le:          rec.LE,
		bredr:       rec.BREDR,
	}
	p.supportsLE = rec.LE != nil
	p.supportsBREDR = rec.BREDR != nil

	c.peers[p.id] = p
	c.byAddr[addr.Value] = p.id
	if uint64(rec.Identifier) > c.nextID {
		c.nextID = uint64(rec.Identifier)
	}
	c.mu.Unlock()

	c.notifyUpdated(p)
	return nil
}

// StoreBond attaches freshly negotiated key material to a peer, marks
// it bonded, persists it and fires the bonded observer.
func (c *Cache) StoreBond(id bthost.PeerID, le *bthost.LESecurityData, bredr *bthost.BREDRSecurityData) error {
	c.mu.Lock()
	p, ok := c.peers[id]
	if !ok {
		c.mu.Unlock()
		return errors.Errorf("unknown peer %s", id)
	}
	if le != nil {
		p.le = le
		p.supportsLE = true
	}
	if bredr != nil {
		p.bredr = bredr
		p.supportsBREDR = true
	}
	p.bonded = true
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Save(p.BondingData()); err != nil {
			logger.Errorf("can't persist bond for %s: %v", id, err)
		}
	}

	if c.bonded != nil {
		c.bonded(p)
	}
	c.notifyUpdated(p)
	return nil
}

// SetConnected updates per-transport link state. Link state feeds the
// RemoveDisconnectedPeer guard.
func (c *Cache) SetConnected(id bthost.PeerID, tech bthost.Technology, connected bool) {
	c.mu.Lock()
	p, ok := c.peers[id]
	if ok {
		switch tech {
		case bthost.TechnologyLowEnergy:
			p.connectedLE = connected
		case bthost.TechnologyClassic:
			p.connectedBREDR = connected
		}
	}
	c.mu.Unlock()

	if ok {
		c.notifyUpdated(p)
	}
}

// RemoveDisconnectedPeer removes id from the cache. It is a no-op
// failure if the peer is still connected on any transport.
func (c *Cache) RemoveDisconnectedPeer(id bthost.PeerID) bool {
	c.mu.Lock()
	p, ok := c.peers[id]
	if !ok {
		c.mu.Unlock()
		return true
	}
	if p.Connected() {
		c.mu.Unlock()
		return false
	}
	delete(c.peers, id)
	delete(c.byAddr, p.addr.Value)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(id); err != nil {
			logger.Errorf("can't remove bond for %s: %v", id, err)
		}
	}
	if c.removed != nil {
		c.removed(id)
	}
	return true
}

// LoadStore restores every persisted bond into the cache.
func (c *Cache) LoadStore() error {
	if c.store == nil {
		return nil
	}
	recs, err := c.store.Load()
	if err != nil {
		return errors.Wrap(err, "can't load bond store")
	}
	for _, rec := range recs {
		if err := c.AddBondedPeer(rec); err != nil {
			logger.Warnf("skipping stored bond %s: %v", rec.Identifier, err)
		}
	}
	return nil
}

func (c *Cache) notifyUpdated(p *Peer) {
	if c.updated != nil {
		c.updated(p)
	}
}

// bondAddress picks the identity address for a record. Dual-mode
// entries are keyed by the BR/EDR address.
func bondAddress(rec bthost.BondingData) (bthost.Addr, error) {
	switch {
	case rec.BREDR != nil:
		return rec.BREDR.Addr, nil
	case rec.LE != nil:
		return rec.LE.IdentityAddr, nil
	default:
		return bthost.Addr{}, errors.New("bonding record carries no transport data")
	}
}
