package cmd

// Inquiry implements Inquiry (0x01|0x0001) [Vol 2, Part E, 7.1.1]
type Inquiry struct {
	LAP          [3]byte
	InquiryLen   uint8
	NumResponses uint8
}

func (c *Inquiry) OpCode() int { return 0x01<<10 | 0x0001 }
func (c *Inquiry) Len() int    { return 5 }

func (c *Inquiry) Marshal(b []byte) error { return marshal(c, b) }

// InquiryCancel implements Inquiry Cancel (0x01|0x0002) [Vol 2, Part E, 7.1.2]
type InquiryCancel struct{}

func (c *InquiryCancel) OpCode() int { return 0x01<<10 | 0x0002 }
func (c *InquiryCancel) Len() int    { return 0 }

func (c *InquiryCancel) Marshal(b []byte) error { return marshal(c, b) }

// InquiryCancelRP ...
type InquiryCancelRP struct {
	Status uint8
}

func (c *InquiryCancelRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// CreateConnection implements Create Connection (0x01|0x0005) [Vol 2, Part E, 7.1.5]
type CreateConnection struct {
	BDADDR                 [6]byte
	PacketType             uint16
	PageScanRepetitionMode uint8
	Reserved               uint8
	ClockOffset            uint16
	AllowRoleSwitch        uint8
}

func (c *CreateConnection) OpCode() int { return 0x01<<10 | 0x0005 }
func (c *CreateConnection) Len() int    { return 13 }

func (c *CreateConnection) Marshal(b []byte) error { return marshal(c, b) }

// Disconnect implements Disconnect (0x01|0x0006) [Vol 2, Part E, 7.1.6]
type Disconnect struct {
	ConnectionHandle uint16
	Reason           uint8
}

func (c *Disconnect) OpCode() int { return 0x01<<10 | 0x0006 }
func (c *Disconnect) Len() int    { return 3 }

func (c *Disconnect) Marshal(b []byte) error { return marshal(c, b) }

// AcceptConnectionRequest implements Accept Connection Request (0x01|0x0009) [Vol 2, Part E, 7.1.8]
type AcceptConnectionRequest struct {
	BDADDR [6]byte
	Role   uint8
}

func (c *AcceptConnectionRequest) OpCode() int { return 0x01<<10 | 0x0009 }
func (c *AcceptConnectionRequest) Len() int    { return 7 }

func (c *AcceptConnectionRequest) Marshal(b []byte) error { return marshal(c, b) }

// RejectConnectionRequest implements Reject Connection Request (0x01|0x000A) [Vol 2, Part E, 7.1.9]
type RejectConnectionRequest struct {
	BDADDR [6]byte
	Reason uint8
}

func (c *RejectConnectionRequest) OpCode() int { return 0x01<<10 | 0x000A }
func (c *RejectConnectionRequest) Len() int    { return 7 }

func (c *RejectConnectionRequest) Marshal(b []byte) error { return marshal(c, b) }

// IOCapabilityRequestReply implements IO Capability Request Reply (0x01|0x002B) [Vol 2, Part E, 7.1.29]
type IOCapabilityRequestReply struct {
	BDADDR                     [6]byte
	IOCapability               uint8
	OOBDataPresent             uint8
	AuthenticationRequirements uint8
}

func (c *IOCapabilityRequestReply) OpCode() int { return 0x01<<10 | 0x002B }
func (c *IOCapabilityRequestReply) Len() int    { return 9 }

func (c *IOCapabilityRequestReply) Marshal(b []byte) error { return marshal(c, b) }

// IOCapabilityRequestReplyRP ...
type IOCapabilityRequestReplyRP struct {
	Status uint8
	BDADDR [6]byte
}

func (c *IOCapabilityRequestReplyRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// UserConfirmationRequestReply implements User Confirmation Request Reply (0x01|0x002C) [Vol 2, Part E, 7.1.30]
type UserConfirmationRequestReply struct {
	BDADDR [6]byte
}

func (c *UserConfirmationRequestReply) OpCode() int { return 0x01<<10 | 0x002C }
func (c *UserConfirmationRequestReply) Len() int    { return 6 }

func (c *UserConfirmationRequestReply) Marshal(b []byte) error { return marshal(c, b) }

// UserConfirmationRequestNegativeReply implements User Confirmation Request Negative Reply (0x01|0x002D) [Vol 2, Part E, 7.1.31]
type UserConfirmationRequestNegativeReply struct {
	BDADDR [6]byte
}

func (c *UserConfirmationRequestNegativeReply) OpCode() int { return 0x01<<10 | 0x002D }
func (c *UserConfirmationRequestNegativeReply) Len() int    { return 6 }

func (c *UserConfirmationRequestNegativeReply) Marshal(b []byte) error { return marshal(c, b) }

// UserPasskeyRequestReply implements User Passkey Request Reply (0x01|0x002E) [Vol 2, Part E, 7.1.32]
type UserPasskeyRequestReply struct {
	BDADDR       [6]byte
	NumericValue uint32
}

func (c *UserPasskeyRequestReply) OpCode() int { return 0x01<<10 | 0x002E }
func (c *UserPasskeyRequestReply) Len() int    { return 10 }

func (c *UserPasskeyRequestReply) Marshal(b []byte) error { return marshal(c, b) }

// UserPasskeyRequestNegativeReply implements User Passkey Request Negative Reply (0x01|0x002F) [Vol 2, Part E, 7.1.33]
type UserPasskeyRequestNegativeReply struct {
	BDADDR [6]byte
}

func (c *UserPasskeyRequestNegativeReply) OpCode() int { return 0x01<<10 | 0x002F }
func (c *UserPasskeyRequestNegativeReply) Len() int    { return 6 }

func (c *UserPasskeyRequestNegativeReply) Marshal(b []byte) error { return marshal(c, b) }
