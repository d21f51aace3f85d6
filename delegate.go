package bthost

// PairingMethod tells the delegate what kind of interaction a pairing
// request needs.
type PairingMethod int

const (
	PairingMethodConsent PairingMethod = iota
	PairingMethodPasskeyDisplay
	PairingMethodPasskeyComparison
	PairingMethodPasskeyEntry
)

func (m PairingMethod) String() string {
	switch m {
	case PairingMethodConsent:
		return "consent"
	case PairingMethodPasskeyDisplay:
		return "passkey display"
	case PairingMethodPasskeyComparison:
		return "passkey comparison"
	case PairingMethodPasskeyEntry:
		return "passkey entry"
	default:
		return "unknown"
	}
}

// PairingDelegate is the external party (UI or policy) that resolves
// user-interaction steps during pairing. OnPairingRequest must call
// respond exactly once; accept=false rejects the request. For
// PairingMethodPasskeyEntry the passkey string carries the user's
// 6-digit reply; for the display methods displayed carries the value
// to show.
type PairingDelegate interface {
	OnPairingRequest(dev Device, method PairingMethod, displayed string, respond func(accept bool, passkey string))
	OnPairingComplete(id string, err error)
}

// EventSink receives the host's outbound events. The bound client of a
// host server implements this.
type EventSink interface {
	OnAdapterStateChanged(diff AdapterStateDiff)
	OnDeviceUpdated(dev Device)
	OnDeviceRemoved(id string)
	OnNewBondingData(rec BondingData)
}
