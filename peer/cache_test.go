package peer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-bt/bthost"
)

var (
	leAddr = bthost.NewAddr(bthost.AddrTypeLEPublic, "11:22:33:44:55:66")
	brAddr = bthost.NewAddr(bthost.AddrTypeBREDR, "aa:bb:cc:dd:ee:ff")
)

func TestCacheObservationCreatesPeer(t *testing.T) {
	c := NewCache(nil)

	p := c.OnLEObservation(leAddr, "widget", true)
	require.NotNil(t, p)
	assert.Equal(t, bthost.PeerID(1), p.ID())
	assert.Equal(t, "widget", p.Name())
	assert.True(t, p.LE())
	assert.False(t, p.BREDR())
	assert.True(t, p.Connectable())
	assert.Equal(t, 1, c.Count())

	assert.Same(t, p, c.FindByID(p.ID()))
	assert.Same(t, p, c.FindByAddress(leAddr))
}

func TestCacheRepeatObservationKeepsIdentity(t *testing.T) {
	c := NewCache(nil)

	p := c.OnLEObservation(leAddr, "", true)
	again := c.OnLEObservation(leAddr, "widget", true)
	assert.Same(t, p, again)
	assert.Equal(t, 1, c.Count())

	// a later nameless observation does not erase the name
	c.OnLEObservation(leAddr, "", true)
	assert.Equal(t, "widget", p.Name())
}

func TestCacheDualModeSingleRecord(t *testing.T) {
	c := NewCache(nil)
	shared := bthost.NewAddr(bthost.AddrTypeBREDR, "11:22:33:44:55:66")

	p := c.OnInquiryResult(shared, "")
	le := c.OnLEObservation(bthost.NewAddr(bthost.AddrTypeLEPublic, "11:22:33:44:55:66"), "", true)

	assert.Same(t, p, le)
	assert.True(t, p.LE())
	assert.True(t, p.BREDR())
	assert.Equal(t, bthost.TechnologyDualMode, p.Technology())
}

func TestCacheUpdatedCallback(t *testing.T) {
	c := NewCache(nil)

	var updates []bthost.PeerID
	c.SetUpdatedCallback(func(p *Peer) { updates = append(updates, p.ID()) })

	p := c.OnLEObservation(leAddr, "", true)
	c.SetConnected(p.ID(), bthost.TechnologyLowEnergy, true)
	assert.Equal(t, []bthost.PeerID{p.ID(), p.ID()}, updates)
}

func TestCacheConnectedState(t *testing.T) {
	c := NewCache(nil)
	p := c.OnLEObservation(leAddr, "", true)

	assert.False(t, p.Connected())
	c.SetConnected(p.ID(), bthost.TechnologyLowEnergy, true)
	assert.True(t, p.Connected())
	c.SetConnected(p.ID(), bthost.TechnologyLowEnergy, false)
	assert.False(t, p.Connected())
}

func TestCacheRemoveDisconnectedPeer(t *testing.T) {
	c := NewCache(nil)
	p := c.OnLEObservation(leAddr, "", true)

	var removed []bthost.PeerID
	c.SetRemovedCallback(func(id bthost.PeerID) { removed = append(removed, id) })

	c.SetConnected(p.ID(), bthost.TechnologyLowEnergy, true)
	assert.False(t, c.RemoveDisconnectedPeer(p.ID()))
	assert.Equal(t, 1, c.Count())
	assert.Empty(t, removed)

	c.SetConnected(p.ID(), bthost.TechnologyLowEnergy, false)
	assert.True(t, c.RemoveDisconnectedPeer(p.ID()))
	assert.Zero(t, c.Count())
	assert.Equal(t, []bthost.PeerID{p.ID()}, removed)
	assert.Nil(t, c.FindByAddress(leAddr))

	// removing an unknown peer succeeds
	assert.True(t, c.RemoveDisconnectedPeer(99))
}

func TestCacheStoreBond(t *testing.T) {
	c := NewCache(nil)
	p := c.OnLEObservation(leAddr, "", true)

	var bonded []bthost.PeerID
	c.SetBondedCallback(func(p *Peer) { bonded = append(bonded, p.ID()) })

	ltk := make([]byte, 16)
	require.NoError(t, c.StoreBond(p.ID(), &bthost.LESecurityData{
		IdentityAddr: leAddr,
		LongTermKey:  ltk,
	}, nil))

	assert.True(t, p.Bonded())
	require.NotNil(t, p.LEData())
	assert.Equal(t, []bthost.PeerID{p.ID()}, bonded)

	assert.Error(t, c.StoreBond(99, nil, nil))
}

func TestCacheAddBondedPeer(t *testing.T) {
	c := NewCache(nil)

	rec := bthost.BondingData{
		Identifier: 7,
		Name:       "widget",
		LE:         &bthost.LESecurityData{IdentityAddr: leAddr, LongTermKey: make([]byte, 16)},
	}
	require.NoError(t, c.AddBondedPeer(rec))

	p := c.FindByID(7)
	require.NotNil(t, p)
	assert.True(t, p.Bonded())
	assert.True(t, p.LE())
	assert.Equal(t, "widget", p.Name())

	// the same identifier can't be claimed twice
	assert.Error(t, c.AddBondedPeer(rec))

	// nor can the same address under a different identifier
	other := rec
	other.Identifier = 8
	assert.Error(t, c.AddBondedPeer(other))

	// new observations are numbered past the restored identifier
	fresh := c.OnInquiryResult(brAddr, "")
	assert.Greater(t, uint64(fresh.ID()), uint64(7))
}

func TestCachePersistsBondsThroughStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bonds.json")

	c := NewCache(NewStore(path))
	p := c.OnLEObservation(leAddr, "widget", true)
	require.NoError(t, c.StoreBond(p.ID(), &bthost.LESecurityData{
		IdentityAddr: leAddr,
		LongTermKey:  make([]byte, 16),
		EDiv:         7,
	}, nil))

	// a fresh cache over the same file restores the bond
	restored := NewCache(NewStore(path))
	require.NoError(t, restored.LoadStore())
	rp := restored.FindByID(p.ID())
	require.NotNil(t, rp)
	assert.True(t, rp.Bonded())
	require.NotNil(t, rp.LEData())
	assert.Equal(t, uint16(7), rp.LEData().EDiv)

	// removal deletes the persisted record too
	require.True(t, restored.RemoveDisconnectedPeer(p.ID()))
	again := NewCache(NewStore(path))
	require.NoError(t, again.LoadStore())
	assert.Zero(t, again.Count())
}

func TestCacheForEachSnapshot(t *testing.T) {
	c := NewCache(nil)
	c.OnLEObservation(leAddr, "", true)
	c.OnInquiryResult(brAddr, "")

	var seen []bthost.PeerID
	c.ForEach(func(p *Peer) {
		seen = append(seen, p.ID())
		// mutation during iteration is allowed
		c.RemoveDisconnectedPeer(p.ID())
	})
	assert.Len(t, seen, 2)
	assert.Zero(t, c.Count())
}
