// Package evt provides read-only views over received HCI event packets.
package evt

import (
	"encoding/binary"
	"fmt"
)

// Event codes [Vol 2, Part E, 7.7].
const (
	InquiryCompleteCode           = 0x01
	InquiryResultCode             = 0x02
	ConnectionCompleteCode        = 0x03
	ConnectionRequestCode         = 0x04
	DisconnectionCompleteCode     = 0x05
	RemoteNameReqCompleteCode     = 0x07
	EncryptionChangeCode          = 0x08
	CommandCompleteCode           = 0x0E
	CommandStatusCode             = 0x0F
	NumberOfCompletedPacketsCode  = 0x13
	LinkKeyNotificationCode       = 0x18
	IOCapabilityRequestCode       = 0x31
	IOCapabilityResponseCode      = 0x32
	UserConfirmationRequestCode   = 0x33
	UserPasskeyRequestCode        = 0x34
	SimplePairingCompleteCode     = 0x36
	UserPasskeyNotificationCode   = 0x3B
	LEMetaCode                    = 0x3E
	LEConnectionCompleteSubCode   = 0x01
	LEAdvertisingReportSubCode    = 0x02
	LEConnectionUpdateSubCode     = 0x03
	LELongTermKeyRequestSubCode   = 0x05
)

func getByte(b []byte, i int, def byte) (byte, error) {
	bb, err := getBytes(b, i, 1)
	if err != nil {
		return def, err
	}
	return bb[0], nil
}

func getUint16LE(b []byte, i int, def uint16) (uint16, error) {
	bb, err := getBytes(b, i, 2)
	if err != nil {
		return def, err
	}
	return binary.LittleEndian.Uint16(bb), nil
}

func getBytes(b []byte, start int, count int) ([]byte, error) {
	if count == -1 {
		if start > len(b) {
			return nil, fmt.Errorf("out of bounds: start %d, len %d", start, len(b))
		}
		return b[start:], nil
	}
	if start+count > len(b) {
		return nil, fmt.Errorf("out of bounds: start %d, count %d, len %d", start, count, len(b))
	}
	return b[start : start+count], nil
}

// CommandComplete [Vol 2, Part E, 7.7.14]
type CommandComplete []byte

func (e CommandComplete) NumHCICommandPackets() uint8 {
	v, _ := getByte(e, 0, 0)
	return v
}

func (e CommandComplete) CommandOpcode() uint16 {
	v, _ := getUint16LE(e, 1, 0xffff)
	return v
}

func (e CommandComplete) ReturnParameters() []byte {
	v, _ := getBytes(e, 3, -1)
	return v
}

// CommandStatus [Vol 2, Part E, 7.7.15]
type CommandStatus []byte

func (e CommandStatus) Valid() bool {
	return len(e) >= 4
}

func (e CommandStatus) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e CommandStatus) NumHCICommandPackets() uint8 {
	v, _ := getByte(e, 1, 0)
	return v
}

func (e CommandStatus) CommandOpcode() uint16 {
	v, _ := getUint16LE(e, 2, 0xffff)
	return v
}

// InquiryComplete [Vol 2, Part E, 7.7.1]
type InquiryComplete []byte

func (e InquiryComplete) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

// InquiryResult [Vol 2, Part E, 7.7.2]
type InquiryResult []byte

func (e InquiryResult) NumResponses() uint8 {
	v, _ := getByte(e, 0, 0)
	return v
}

func (e InquiryResult) BDADDR(i int) ([6]byte, error) {
	bb, err := getBytes(e, 1+6*i, 6)
	if err != nil {
		return [6]byte{}, err
	}
	out := [6]byte{}
	copy(out[:], bb)
	return out, nil
}

func (e InquiryResult) ClassOfDevice(i int) ([3]byte, error) {
	nr := int(e.NumResponses())
	bb, err := getBytes(e, 1+nr*9+3*i, 3)
	if err != nil {
		return [3]byte{}, err
	}
	out := [3]byte{}
	copy(out[:], bb)
	return out, nil
}

// ConnectionComplete [Vol 2, Part E, 7.7.3]
type ConnectionComplete []byte

func (e ConnectionComplete) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e ConnectionComplete) ConnectionHandle() uint16 {
	v, _ := getUint16LE(e, 1, 0xffff)
	return v
}

func (e ConnectionComplete) BDADDR() [6]byte {
	bb, err := getBytes(e, 3, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e ConnectionComplete) LinkType() uint8 {
	v, _ := getByte(e, 9, 0xff)
	return v
}

// DisconnectionComplete [Vol 2, Part E, 7.7.5]
type DisconnectionComplete []byte

func (e DisconnectionComplete) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e DisconnectionComplete) ConnectionHandle() uint16 {
	v, _ := getUint16LE(e, 1, 0xffff)
	return v
}

func (e DisconnectionComplete) Reason() uint8 {
	v, _ := getByte(e, 3, 0xff)
	return v
}

// LEConnectionComplete [Vol 2, Part E, 7.7.65.1]
type LEConnectionComplete []byte

func (e LEConnectionComplete) SubeventCode() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e LEConnectionComplete) Status() uint8 {
	v, _ := getByte(e, 1, 0xff)
	return v
}

func (e LEConnectionComplete) ConnectionHandle() uint16 {
	v, _ := getUint16LE(e, 2, 0xffff)
	return v
}

func (e LEConnectionComplete) Role() uint8 {
	v, _ := getByte(e, 4, 0xff)
	return v
}

func (e LEConnectionComplete) PeerAddressType() uint8 {
	v, _ := getByte(e, 5, 0xff)
	return v
}

func (e LEConnectionComplete) PeerAddress() [6]byte {
	bb, err := getBytes(e, 6, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

// LEAdvertisingReport [Vol 2, Part E, 7.7.65.2]
type LEAdvertisingReport []byte

func (e LEAdvertisingReport) SubeventCode() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e LEAdvertisingReport) NumReports() uint8 {
	v, _ := getByte(e, 1, 0)
	return v
}

func (e LEAdvertisingReport) EventType(i int) (uint8, error) {
	return getByte(e, 2+i, 0xff)
}

func (e LEAdvertisingReport) AddressType(i int) (uint8, error) {
	nr := int(e.NumReports())
	return getByte(e, 2+nr+i, 0xff)
}

func (e LEAdvertisingReport) Address(i int) ([6]byte, error) {
	nr := int(e.NumReports())
	bb, err := getBytes(e, 2+nr*2+6*i, 6)
	if err != nil {
		return [6]byte{}, err
	}
	out := [6]byte{}
	copy(out[:], bb)
	return out, nil
}

func (e LEAdvertisingReport) LengthData(i int) (uint8, error) {
	nr := int(e.NumReports())
	return getByte(e, 2+nr*8+i, 0)
}

func (e LEAdvertisingReport) Data(i int) ([]byte, error) {
	nr := int(e.NumReports())
	off := 0
	for j := 0; j < i; j++ {
		ll, err := e.LengthData(j)
		if err != nil {
			return nil, err
		}
		off += int(ll)
	}
	ll, err := e.LengthData(i)
	if err != nil {
		return nil, err
	}
	return getBytes(e, 2+nr*9+off, int(ll))
}

// ConnectionRequest [Vol 2, Part E, 7.7.4]
type ConnectionRequest []byte

func (e ConnectionRequest) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e ConnectionRequest) ClassOfDevice() [3]byte {
	bb, err := getBytes(e, 6, 3)
	out := [3]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e ConnectionRequest) LinkType() uint8 {
	v, _ := getByte(e, 9, 0xff)
	return v
}

// LinkKeyNotification [Vol 2, Part E, 7.7.24]
type LinkKeyNotification []byte

func (e LinkKeyNotification) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e LinkKeyNotification) LinkKey() [16]byte {
	bb, err := getBytes(e, 6, 16)
	out := [16]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e LinkKeyNotification) KeyType() uint8 {
	v, _ := getByte(e, 22, 0xff)
	return v
}

// IOCapabilityRequest [Vol 2, Part E, 7.7.40]
type IOCapabilityRequest []byte

func (e IOCapabilityRequest) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

// IOCapabilityResponse [Vol 2, Part E, 7.7.41]
type IOCapabilityResponse []byte

func (e IOCapabilityResponse) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e IOCapabilityResponse) IOCapability() uint8 {
	v, _ := getByte(e, 6, 0xff)
	return v
}

func (e IOCapabilityResponse) OOBDataPresent() uint8 {
	v, _ := getByte(e, 7, 0xff)
	return v
}

func (e IOCapabilityResponse) AuthenticationRequirements() uint8 {
	v, _ := getByte(e, 8, 0xff)
	return v
}

// UserConfirmationRequest [Vol 2, Part E, 7.7.42]
type UserConfirmationRequest []byte

func (e UserConfirmationRequest) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e UserConfirmationRequest) NumericValue() uint32 {
	bb, err := getBytes(e, 6, 4)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(bb)
}

// UserPasskeyRequest [Vol 2, Part E, 7.7.43]
type UserPasskeyRequest []byte

func (e UserPasskeyRequest) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

// SimplePairingComplete [Vol 2, Part E, 7.7.45]
type SimplePairingComplete []byte

func (e SimplePairingComplete) Status() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e SimplePairingComplete) BDADDR() [6]byte {
	bb, err := getBytes(e, 1, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

// UserPasskeyNotification [Vol 2, Part E, 7.7.48]
type UserPasskeyNotification []byte

func (e UserPasskeyNotification) BDADDR() [6]byte {
	bb, err := getBytes(e, 0, 6)
	out := [6]byte{}
	if err == nil {
		copy(out[:], bb)
	}
	return out
}

func (e UserPasskeyNotification) Passkey() uint32 {
	bb, err := getBytes(e, 6, 4)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint32(bb)
}

// LELongTermKeyRequest [Vol 2, Part E, 7.7.65.5]
type LELongTermKeyRequest []byte

func (e LELongTermKeyRequest) SubeventCode() uint8 {
	v, _ := getByte(e, 0, 0xff)
	return v
}

func (e LELongTermKeyRequest) ConnectionHandle() uint16 {
	v, _ := getUint16LE(e, 1, 0xffff)
	return v
}

func (e LELongTermKeyRequest) RandomNumber() uint64 {
	bb, err := getBytes(e, 3, 8)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(bb)
}

func (e LELongTermKeyRequest) EncryptionDiversifier() uint16 {
	v, _ := getUint16LE(e, 11, 0)
	return v
}
