// Package peer maintains the registry of discovered and bonded remote
// devices. All mutation goes through the Cache; a Peer handed out by
// the cache is read-only to everyone else.
package peer

import (
	"github.com/go-bt/bthost"
)

// Peer is one remote device record.
type Peer struct {
	id          bthost.PeerID
	addr        bthost.Addr
	name        string
	connectable bool
	bonded      bool

	supportsLE    bool
	supportsBREDR bool

	connectedLE    bool
	connectedBREDR bool

	le    *bthost.LESecurityData
	bredr *bthost.BREDRSecurityData
}

func (p *Peer) ID() bthost.PeerID { return p.id }
func (p *Peer) Addr() bthost.Addr { return p.addr }
func (p *Peer) Name() string      { return p.name }
func (p *Peer) Connectable() bool { return p.connectable }
func (p *Peer) Bonded() bool      { return p.bonded }

// LE reports whether the peer has been observed over (or bonded on) LE.
func (p *Peer) LE() bool { return p.supportsLE }

// BREDR reports whether the peer has been observed over (or bonded on)
// BR/EDR.
func (p *Peer) BREDR() bool { return p.supportsBREDR }

// Connected reports whether any transport currently has a link up.
func (p *Peer) Connected() bool { return p.connectedLE || p.connectedBREDR }

// LEData returns the persisted LE bond material, if any.
func (p *Peer) LEData() *bthost.LESecurityData { return p.le }

// BREDRData returns the persisted BR/EDR bond material, if any.
func (p *Peer) BREDRData() *bthost.BREDRSecurityData { return p.bredr }

// Technology derives the transport set from what has been observed.
func (p *Peer) Technology() bthost.Technology {
	switch {
	case p.supportsLE && p.supportsBREDR:
		return bthost.TechnologyDualMode
	case p.supportsLE:
		return bthost.TechnologyLowEnergy
	default:
		return bthost.TechnologyClassic
	}
}

// Device builds the client- and delegate-facing descriptor.
func (p *Peer) Device() bthost.Device {
	return bthost.Device{
		Identifier:  p.id.String(),
		Address:     p.addr.String(),
		Technology:  p.Technology(),
		Name:        p.name,
		Connectable: p.connectable,
		Bonded:      p.bonded,
	}
}

// BondingData assembles the persistable record for a bonded peer.
func (p *Peer) BondingData() bthost.BondingData {
	return bthost.BondingData{
		Identifier: p.id,
		Name:       p.name,
		LE:         p.le,
		BREDR:      p.bredr,
	}
}
