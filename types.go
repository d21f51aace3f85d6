package bthost

import (
	"fmt"
	"strconv"
)

// PeerID is the stable identifier assigned to a peer when it is first
// observed. It is rendered externally as a 16-digit hex string.
type PeerID uint64

func (id PeerID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// ParsePeerID parses the textual form of a PeerID. An unparsable string
// is an INVALID_ARGUMENTS error, never a crash.
func ParsePeerID(s string) (PeerID, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, NewErrorf(CodeInvalidArguments, "invalid peer ID %q", s)
	}
	return PeerID(v), nil
}

// Technology describes which transports a peer (or the adapter) speaks.
type Technology int

const (
	TechnologyLowEnergy Technology = iota
	TechnologyClassic
	TechnologyDualMode
)

func (t Technology) String() string {
	switch t {
	case TechnologyLowEnergy:
		return "LE"
	case TechnologyClassic:
		return "BR/EDR"
	case TechnologyDualMode:
		return "dual-mode"
	default:
		return "unknown"
	}
}

// IOCapability is a device's declared input/output capability class,
// used to negotiate the pairing method. Values follow the Security
// Manager encoding [Vol 3, Part H, 3.5.1].
type IOCapability byte

const (
	IOCapDisplayOnly IOCapability = iota
	IOCapDisplayYesNo
	IOCapKeyboardOnly
	IOCapNoInputNoOutput
	IOCapKeyboardDisplay
)

func (c IOCapability) String() string {
	switch c {
	case IOCapDisplayOnly:
		return "DisplayOnly"
	case IOCapDisplayYesNo:
		return "DisplayYesNo"
	case IOCapKeyboardOnly:
		return "KeyboardOnly"
	case IOCapNoInputNoOutput:
		return "NoInputNoOutput"
	case IOCapKeyboardDisplay:
		return "KeyboardDisplay"
	default:
		return fmt.Sprintf("unknown (%d)", byte(c))
	}
}

// DeviceClass is the 24-bit Class of Device value.
type DeviceClass uint32

// Valid reports whether the value fits in the lower 3 bytes.
func (d DeviceClass) Valid() bool {
	return d < 1<<24
}

// LESecurityData is the LE half of a bonding record: the identity
// address plus the long-term key material persisted after pairing.
type LESecurityData struct {
	IdentityAddr Addr   `json:"identityAddress"`
	LongTermKey  []byte `json:"longTermKey"`
	EDiv         uint16 `json:"encryptionDiversifier"`
	Rand         uint64 `json:"randomValue"`
	Legacy       bool   `json:"legacy"`
}

// BREDRSecurityData is the classic half of a bonding record.
type BREDRSecurityData struct {
	Addr    Addr   `json:"address"`
	LinkKey []byte `json:"linkKey"`
}

// BondingData is one persisted bond. At least one of LE and BREDR must
// be present; for a dual-mode record the two addresses must agree.
type BondingData struct {
	Identifier PeerID             `json:"identifier"`
	Name       string             `json:"name,omitempty"`
	LE         *LESecurityData    `json:"le,omitempty"`
	BREDR      *BREDRSecurityData `json:"bredr,omitempty"`
}

// Device is the delegate- and client-facing descriptor of a peer.
type Device struct {
	Identifier  string
	Address     string
	Technology  Technology
	Name        string
	Connectable bool
	Bonded      bool
}

// AdapterInfo is the top-level description of the adapter.
type AdapterInfo struct {
	Identifier string
	Address    string
	Technology Technology
	State      AdapterState
}

// AdapterState is the complete current top-level adapter state.
type AdapterState struct {
	LocalName    string
	Discoverable bool
	Discovering  bool
}

// AdapterStateDiff describes which top-level fields changed. A nil
// field means "unchanged"; an event carrying a diff is sent only when
// at least one field is set.
type AdapterStateDiff struct {
	LocalName    *string
	Discoverable *bool
	Discovering  *bool
}

// Empty reports whether the diff carries no change at all.
func (d AdapterStateDiff) Empty() bool {
	return d.LocalName == nil && d.Discoverable == nil && d.Discovering == nil
}

// BoolPtr is a helper for building diffs.
func BoolPtr(v bool) *bool { return &v }

// StringPtr is a helper for building diffs.
func StringPtr(v string) *string { return &v }
