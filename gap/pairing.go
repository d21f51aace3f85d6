package gap

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci/cmd"
	"github.com/go-bt/bthost/hci/evt"
	"github.com/go-bt/bthost/peer"
	"github.com/go-bt/bthost/sm"
)

// Authentication requirements [Vol 2, Part E, 7.1.29].
const (
	authGeneralBonding     = 0x04
	authGeneralBondingMITM = 0x05
)

// pairingContext is one in-flight pairing attempt. It exists from the
// first I/O-capability exchange event until the pairing completes or
// the link drops.
type pairingContext struct {
	addr        bthost.Addr
	initiator   bool
	peerCap     bthost.IOCapability
	havePeerCap bool
}

// PairingDispatcher drives the delegate callback protocol for the
// pairing events the controller raises. Exactly one delegate callback
// is issued per event; the delegate's reply is translated back into a
// protocol-level confirm/reject or passkey value.
type PairingDispatcher struct {
	cmd   commander
	cache *peer.Cache

	mu       sync.Mutex
	localCap bthost.IOCapability
	delegate bthost.PairingDelegate
	contexts map[string]*pairingContext
	// replies holds the wire-level responders of outstanding delegate
	// requests. A delegate swap answers them negatively; a late reply
	// from the old delegate finds its entry gone and is dropped.
	replies   map[uint64]func(accept bool, passkey string)
	nextReply uint64

	keys *sm.ECDHKeys

	resolveHandle func(uint16) (bthost.PeerID, bool)
}

// NewPairingDispatcher wires the dispatcher's event handlers into c.
// Without a delegate the local I/O capability is NoInputNoOutput and
// every interaction resolves automatically.
func NewPairingDispatcher(c commander, cache *peer.Cache) (*PairingDispatcher, error) {
	keys, err := sm.GenerateKeys()
	if err != nil {
		return nil, err
	}

	d := &PairingDispatcher{
		cmd:      c,
		cache:    cache,
		localCap: bthost.IOCapNoInputNoOutput,
		contexts: make(map[string]*pairingContext),
		replies:  make(map[uint64]func(accept bool, passkey string)),
		keys:     keys,
	}
	c.Subscribe(evt.IOCapabilityRequestCode, d.handleIOCapabilityRequest)
	c.Subscribe(evt.IOCapabilityResponseCode, d.handleIOCapabilityResponse)
	c.Subscribe(evt.UserConfirmationRequestCode, d.handleUserConfirmationRequest)
	c.Subscribe(evt.UserPasskeyRequestCode, d.handleUserPasskeyRequest)
	c.Subscribe(evt.UserPasskeyNotificationCode, d.handleUserPasskeyNotification)
	c.Subscribe(evt.SimplePairingCompleteCode, d.handleSimplePairingComplete)
	c.Subscribe(evt.LinkKeyNotificationCode, d.handleLinkKeyNotification)
	c.SubscribeLE(evt.LELongTermKeyRequestSubCode, d.handleLongTermKeyRequest)
	return d, nil
}

// SecureConnectionsKeys returns the adapter's P-256 keypair for LE
// Secure Connections pairing.
func (d *PairingDispatcher) SecureConnectionsKeys() *sm.ECDHKeys { return d.keys }

// SetHandleResolver installs the handle-to-peer lookup used to answer
// LE Long Term Key requests.
func (d *PairingDispatcher) SetHandleResolver(fn func(uint16) (bthost.PeerID, bool)) {
	d.resolveHandle = fn
}

// IOCapability returns the currently declared local capability.
func (d *PairingDispatcher) IOCapability() bthost.IOCapability {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.localCap
}

// SetDelegate replaces the pairing delegate. Outstanding user
// interactions are answered negatively on the wire so the peer is not
// left waiting out its pairing timeout. A nil delegate additionally
// resets the local I/O capability to NoInputNoOutput and fails every
// in-flight pairing with CANCELED.
func (d *PairingDispatcher) SetDelegate(ioCap bthost.IOCapability, delegate bthost.PairingDelegate) {
	if delegate == nil {
		ioCap = bthost.IOCapNoInputNoOutput
	}

	d.mu.Lock()
	old := d.delegate
	var canceled []*pairingContext
	if delegate == nil && len(d.contexts) > 0 {
		for _, ctx := range d.contexts {
			canceled = append(canceled, ctx)
		}
		d.contexts = make(map[string]*pairingContext)
	}
	outstanding := d.replies
	d.replies = make(map[uint64]func(accept bool, passkey string))
	d.delegate = delegate
	d.localCap = ioCap
	d.mu.Unlock()

	for _, reply := range outstanding {
		reply(false, "")
	}

	if old == nil {
		return
	}
	for _, ctx := range canceled {
		if p := d.cache.FindByAddress(ctx.addr); p != nil {
			old.OnPairingComplete(p.ID().String(), bthost.NewError(bthost.CodeCanceled, "pairing delegate cleared"))
		}
	}
}

// ConfirmPairing asks the delegate for yes/no consent.
func (d *PairingDispatcher) ConfirmPairing(id bthost.PeerID, respond func(accept bool)) {
	d.request(id, bthost.PairingMethodConsent, "", func(accept bool, _ string) {
		respond(accept)
	})
}

// DisplayPasskey shows a 6-digit value to the user; compare selects
// yes/no comparison over display-with-cancel.
func (d *PairingDispatcher) DisplayPasskey(id bthost.PeerID, passkey uint32, compare bool, respond func(accept bool)) {
	method := bthost.PairingMethodPasskeyDisplay
	if compare {
		method = bthost.PairingMethodPasskeyComparison
	}
	d.request(id, method, fmt.Sprintf("%06d", passkey), func(accept bool, _ string) {
		respond(accept)
	})
}

// RequestPasskey prompts the user for a 6-digit passkey. A rejected or
// malformed reply is reported as -1, never as a crash.
func (d *PairingDispatcher) RequestPasskey(id bthost.PeerID, respond func(passkey int64)) {
	d.request(id, bthost.PairingMethodPasskeyEntry, "", func(accept bool, passkey string) {
		respond(parsePasskey(accept, passkey))
	})
}

// CompletePairing reports the pairing outcome for id to the delegate.
func (d *PairingDispatcher) CompletePairing(id bthost.PeerID, err error) {
	d.mu.Lock()
	delegate := d.delegate
	d.mu.Unlock()
	if delegate != nil {
		delegate.OnPairingComplete(id.String(), err)
	}
}

// request issues exactly one delegate callback. If the delegate has
// been replaced since the request went out, its reply is dropped; the
// replacement already answered the controller negatively.
func (d *PairingDispatcher) request(id bthost.PeerID, method bthost.PairingMethod, displayed string, reply func(accept bool, passkey string)) {
	d.mu.Lock()
	delegate := d.delegate
	d.mu.Unlock()

	p := d.cache.FindByID(id)
	if delegate == nil || p == nil {
		reply(false, "")
		return
	}

	d.mu.Lock()
	token := d.nextReply
	d.nextReply++
	d.replies[token] = reply
	d.mu.Unlock()

	var once sync.Once
	delegate.OnPairingRequest(p.Device(), method, displayed, func(accept bool, passkey string) {
		once.Do(func() {
			d.mu.Lock()
			_, live := d.replies[token]
			delete(d.replies, token)
			d.mu.Unlock()
			if !live {
				logger.Debugf("dropping pairing reply for %s: delegate replaced", id)
				return
			}
			reply(accept, passkey)
		})
	})
}

func parsePasskey(accept bool, s string) int64 {
	if !accept {
		return -1
	}
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil || v < 0 || v > 999999 {
		return -1
	}
	return v
}

// lookup finds the in-flight context for addr.
func (d *PairingDispatcher) lookup(addr bthost.Addr) *pairingContext {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.contexts[addr.Value]
}

func (d *PairingDispatcher) drop(addr bthost.Addr) {
	d.mu.Lock()
	delete(d.contexts, addr.Value)
	d.mu.Unlock()
}

func (d *PairingDispatcher) handleIOCapabilityRequest(b []byte) error {
	e := evt.IOCapabilityRequest(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())

	d.mu.Lock()
	ctx := d.contexts[addr.Value]
	if ctx == nil {
		// the initiator is asked for its capabilities before it has
		// seen the peer's
		ctx = &pairingContext{addr: addr, initiator: true}
		d.contexts[addr.Value] = ctx
	}
	local := d.localCap
	d.mu.Unlock()

	authReq := uint8(authGeneralBonding)
	switch {
	case ctx.havePeerCap && sm.IsPairingAuthenticated(local, ctx.peerCap):
		authReq = authGeneralBondingMITM
	case !ctx.havePeerCap && local != bthost.IOCapNoInputNoOutput:
		authReq = authGeneralBondingMITM
	}

	reply := &cmd.IOCapabilityRequestReply{
		BDADDR:                     e.BDADDR(),
		IOCapability:               ioCapToHCI(local),
		AuthenticationRequirements: authReq,
	}
	d.cmd.SendCommand(reply, logCompletion("io capability reply"))
	return nil
}

func (d *PairingDispatcher) handleIOCapabilityResponse(b []byte) error {
	e := evt.IOCapabilityResponse(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())

	d.mu.Lock()
	ctx := d.contexts[addr.Value]
	if ctx == nil {
		// the responder sees the initiator's capabilities first
		ctx = &pairingContext{addr: addr}
		d.contexts[addr.Value] = ctx
	}
	ctx.peerCap = ioCapFromHCI(e.IOCapability())
	ctx.havePeerCap = true
	d.mu.Unlock()
	return nil
}

func (d *PairingDispatcher) handleUserConfirmationRequest(b []byte) error {
	e := evt.UserConfirmationRequest(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())
	bd := e.BDADDR()

	ctx := d.lookup(addr)
	p := d.cache.FindByAddress(addr)
	if ctx == nil || p == nil {
		logger.Warnf("confirmation request from %s without a pairing in flight", addr)
		d.cmd.SendCommand(&cmd.UserConfirmationRequestNegativeReply{BDADDR: bd}, logCompletion("confirmation reject"))
		return nil
	}

	d.mu.Lock()
	local := d.localCap
	d.mu.Unlock()
	d.checkExpectedEvent(ctx, local, evt.UserConfirmationRequestCode)

	accept := func(ok bool) {
		if ok {
			d.cmd.SendCommand(&cmd.UserConfirmationRequestReply{BDADDR: bd}, logCompletion("confirmation accept"))
		} else {
			d.cmd.SendCommand(&cmd.UserConfirmationRequestNegativeReply{BDADDR: bd}, logCompletion("confirmation reject"))
		}
	}

	switch action := d.actionFor(ctx, local); action {
	case sm.ActionAutomatic:
		accept(true)
	case sm.ActionGetConsent:
		d.ConfirmPairing(p.ID(), accept)
	case sm.ActionComparePasskey:
		d.DisplayPasskey(p.ID(), e.NumericValue(), true, accept)
	case sm.ActionDisplayPasskey:
		d.DisplayPasskey(p.ID(), e.NumericValue(), false, accept)
	default:
		logger.Warnf("unexpected %v action for a confirmation request from %s", action, addr)
		accept(false)
	}
	return nil
}

func (d *PairingDispatcher) handleUserPasskeyRequest(b []byte) error {
	e := evt.UserPasskeyRequest(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())
	bd := e.BDADDR()

	p := d.cache.FindByAddress(addr)
	if p == nil {
		d.cmd.SendCommand(&cmd.UserPasskeyRequestNegativeReply{BDADDR: bd}, logCompletion("passkey reject"))
		return nil
	}
	if ctx := d.lookup(addr); ctx != nil {
		d.mu.Lock()
		local := d.localCap
		d.mu.Unlock()
		d.checkExpectedEvent(ctx, local, evt.UserPasskeyRequestCode)
	}

	d.RequestPasskey(p.ID(), func(passkey int64) {
		if passkey < 0 {
			d.cmd.SendCommand(&cmd.UserPasskeyRequestNegativeReply{BDADDR: bd}, logCompletion("passkey reject"))
			return
		}
		reply := &cmd.UserPasskeyRequestReply{BDADDR: bd, NumericValue: uint32(passkey)}
		d.cmd.SendCommand(reply, logCompletion("passkey reply"))
	})
	return nil
}

func (d *PairingDispatcher) handleUserPasskeyNotification(b []byte) error {
	e := evt.UserPasskeyNotification(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())

	p := d.cache.FindByAddress(addr)
	if p == nil {
		return nil
	}
	if ctx := d.lookup(addr); ctx != nil {
		d.mu.Lock()
		local := d.localCap
		d.mu.Unlock()
		d.checkExpectedEvent(ctx, local, evt.UserPasskeyNotificationCode)
	}

	id := p.ID()
	d.DisplayPasskey(id, e.Passkey(), false, func(accept bool) {
		if !accept {
			logger.Infof("passkey display for %s dismissed", id)
		}
	})
	return nil
}

func (d *PairingDispatcher) handleSimplePairingComplete(b []byte) error {
	e := evt.SimplePairingComplete(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())
	d.drop(addr)

	p := d.cache.FindByAddress(addr)
	if p == nil {
		return nil
	}
	if e.Status() != 0x00 {
		d.CompletePairing(p.ID(), statusErr(nil, []byte{e.Status()}))
		return nil
	}
	d.CompletePairing(p.ID(), nil)
	return nil
}

func (d *PairingDispatcher) handleLinkKeyNotification(b []byte) error {
	e := evt.LinkKeyNotification(b)
	addr := wireAddr(bthost.AddrTypeBREDR, e.BDADDR())

	p := d.cache.FindByAddress(addr)
	if p == nil {
		logger.Warnf("link key for unknown device %s", addr)
		return nil
	}

	key := e.LinkKey()
	return d.cache.StoreBond(p.ID(), nil, &bthost.BREDRSecurityData{
		Addr:    addr,
		LinkKey: key[:],
	})
}

func (d *PairingDispatcher) handleLongTermKeyRequest(b []byte) error {
	e := evt.LELongTermKeyRequest(b)
	handle := e.ConnectionHandle()

	negative := func() {
		c := &cmd.LELongTermKeyRequestNegativeReply{ConnectionHandle: handle}
		d.cmd.SendCommand(c, logCompletion("ltk negative reply"))
	}

	if d.resolveHandle == nil {
		negative()
		return nil
	}
	id, ok := d.resolveHandle(handle)
	if !ok {
		negative()
		return nil
	}
	p := d.cache.FindByID(id)
	if p == nil || p.LEData() == nil || len(p.LEData().LongTermKey) != 16 {
		negative()
		return nil
	}
	led := p.LEData()
	if led.EDiv != e.EncryptionDiversifier() || led.Rand != e.RandomNumber() {
		negative()
		return nil
	}

	reply := &cmd.LELongTermKeyRequestReply{ConnectionHandle: handle}
	copy(reply.LongTermKey[:], led.LongTermKey)
	d.cmd.SendCommand(reply, logCompletion("ltk reply"))
	return nil
}

// actionFor resolves the user interaction the in-flight pairing needs.
func (d *PairingDispatcher) actionFor(ctx *pairingContext, local bthost.IOCapability) sm.PairingAction {
	peerCap := bthost.IOCapNoInputNoOutput
	if ctx.havePeerCap {
		peerCap = ctx.peerCap
	}
	if ctx.initiator {
		return sm.GetInitiatorPairingAction(local, peerCap)
	}
	return sm.GetResponderPairingAction(peerCap, local)
}

func (d *PairingDispatcher) checkExpectedEvent(ctx *pairingContext, local bthost.IOCapability, code int) {
	if !ctx.havePeerCap {
		return
	}
	if want := sm.GetExpectedEvent(local, ctx.peerCap); want != code {
		logger.Warnf("pairing with %s: got event 0x%02x, capability table expects 0x%02x", ctx.addr, code, want)
	}
}

// ioCapToHCI maps to the HCI encoding, which has no KeyboardDisplay
// value; it degrades to DisplayYesNo on the wire.
func ioCapToHCI(c bthost.IOCapability) uint8 {
	if c == bthost.IOCapKeyboardDisplay {
		return uint8(bthost.IOCapDisplayYesNo)
	}
	return uint8(c)
}

func ioCapFromHCI(v uint8) bthost.IOCapability {
	if v > uint8(bthost.IOCapNoInputNoOutput) {
		return bthost.IOCapNoInputNoOutput
	}
	return bthost.IOCapability(v)
}
