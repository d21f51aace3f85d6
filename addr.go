package bthost

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// AddrType distinguishes the address spaces a peer can be known by.
type AddrType byte

const (
	AddrTypeBREDR AddrType = iota
	AddrTypeLEPublic
	AddrTypeLERandom
)

func (t AddrType) String() string {
	switch t {
	case AddrTypeBREDR:
		return "BR/EDR"
	case AddrTypeLEPublic:
		return "LE public"
	case AddrTypeLERandom:
		return "LE random"
	default:
		return fmt.Sprintf("unknown (%d)", byte(t))
	}
}

// Addr is a device address with its type.
type Addr struct {
	Type  AddrType
	Value string
}

// NewAddr creates an Addr from its colon-separated string form.
func NewAddr(t AddrType, s string) Addr {
	return Addr{Type: t, Value: strings.ToLower(s)}
}

func (a Addr) String() string {
	return a.Value
}

// Bytes returns the 6-byte little-endian form used on the wire.
func (a Addr) Bytes() []byte {
	hexStr := strings.Replace(a.Value, ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil || len(out) != 6 {
		return nil
	}

	// over-the-wire byte order is the reverse of the printed form
	for i := len(out)/2 - 1; i >= 0; i-- {
		opp := len(out) - 1 - i
		out[i], out[opp] = out[opp], out[i]
	}
	return out
}

// SameDevice reports whether two addresses name the same device,
// ignoring the transport the address was learned on.
func (a Addr) SameDevice(b Addr) bool {
	return a.Value == b.Value
}
