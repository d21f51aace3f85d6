package cmd

// LESetEventMask implements LE Set Event Mask (0x08|0x0001) [Vol 2, Part E, 7.8.1]
type LESetEventMask struct {
	LEEventMask uint64
}

func (c *LESetEventMask) OpCode() int { return 0x08<<10 | 0x0001 }
func (c *LESetEventMask) Len() int    { return 8 }

func (c *LESetEventMask) Marshal(b []byte) error { return marshal(c, b) }

// LESetEventMaskRP ...
type LESetEventMaskRP struct {
	Status uint8
}

func (c *LESetEventMaskRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetAdvertiseEnable implements LE Set Advertise Enable (0x08|0x000A) [Vol 2, Part E, 7.8.9]
type LESetAdvertiseEnable struct {
	AdvertisingEnable uint8
}

func (c *LESetAdvertiseEnable) OpCode() int { return 0x08<<10 | 0x000A }
func (c *LESetAdvertiseEnable) Len() int    { return 1 }

func (c *LESetAdvertiseEnable) Marshal(b []byte) error { return marshal(c, b) }

// LESetAdvertiseEnableRP ...
type LESetAdvertiseEnableRP struct {
	Status uint8
}

func (c *LESetAdvertiseEnableRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetScanParameters implements LE Set Scan Parameters (0x08|0x000B) [Vol 2, Part E, 7.8.10]
type LESetScanParameters struct {
	LEScanType           uint8
	LEScanInterval       uint16
	LEScanWindow         uint16
	OwnAddressType       uint8
	ScanningFilterPolicy uint8
}

func (c *LESetScanParameters) OpCode() int { return 0x08<<10 | 0x000B }
func (c *LESetScanParameters) Len() int    { return 7 }

func (c *LESetScanParameters) Marshal(b []byte) error { return marshal(c, b) }

// LESetScanParametersRP ...
type LESetScanParametersRP struct {
	Status uint8
}

func (c *LESetScanParametersRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LESetScanEnable implements LE Set Scan Enable (0x08|0x000C) [Vol 2, Part E, 7.8.11]
type LESetScanEnable struct {
	LEScanEnable     uint8
	FilterDuplicates uint8
}

func (c *LESetScanEnable) OpCode() int { return 0x08<<10 | 0x000C }
func (c *LESetScanEnable) Len() int    { return 2 }

func (c *LESetScanEnable) Marshal(b []byte) error { return marshal(c, b) }

// LESetScanEnableRP ...
type LESetScanEnableRP struct {
	Status uint8
}

func (c *LESetScanEnableRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LECreateConnection implements LE Create Connection (0x08|0x000D) [Vol 2, Part E, 7.8.12]
type LECreateConnection struct {
	LEScanInterval        uint16
	LEScanWindow          uint16
	InitiatorFilterPolicy uint8
	PeerAddressType       uint8
	PeerAddress           [6]byte
	OwnAddressType        uint8
	ConnIntervalMin       uint16
	ConnIntervalMax       uint16
	ConnLatency           uint16
	SupervisionTimeout    uint16
	MinimumCELength       uint16
	MaximumCELength       uint16
}

func (c *LECreateConnection) OpCode() int { return 0x08<<10 | 0x000D }
func (c *LECreateConnection) Len() int    { return 25 }

func (c *LECreateConnection) Marshal(b []byte) error { return marshal(c, b) }

// LECreateConnectionCancel implements LE Create Connection Cancel (0x08|0x000E) [Vol 2, Part E, 7.8.13]
type LECreateConnectionCancel struct{}

func (c *LECreateConnectionCancel) OpCode() int { return 0x08<<10 | 0x000E }
func (c *LECreateConnectionCancel) Len() int    { return 0 }

func (c *LECreateConnectionCancel) Marshal(b []byte) error { return marshal(c, b) }

// LECreateConnectionCancelRP ...
type LECreateConnectionCancelRP struct {
	Status uint8
}

func (c *LECreateConnectionCancelRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LELongTermKeyRequestReply implements LE Long Term Key Request Reply (0x08|0x001A) [Vol 2, Part E, 7.8.25]
type LELongTermKeyRequestReply struct {
	ConnectionHandle uint16
	LongTermKey      [16]byte
}

func (c *LELongTermKeyRequestReply) OpCode() int { return 0x08<<10 | 0x001A }
func (c *LELongTermKeyRequestReply) Len() int    { return 18 }

func (c *LELongTermKeyRequestReply) Marshal(b []byte) error { return marshal(c, b) }

// LELongTermKeyRequestReplyRP ...
type LELongTermKeyRequestReplyRP struct {
	Status           uint8
	ConnectionHandle uint16
}

func (c *LELongTermKeyRequestReplyRP) Unmarshal(b []byte) error { return unmarshal(c, b) }

// LELongTermKeyRequestNegativeReply implements LE Long Term Key Request Negative Reply (0x08|0x001B) [Vol 2, Part E, 7.8.26]
type LELongTermKeyRequestNegativeReply struct {
	ConnectionHandle uint16
}

func (c *LELongTermKeyRequestNegativeReply) OpCode() int { return 0x08<<10 | 0x001B }
func (c *LELongTermKeyRequestNegativeReply) Len() int    { return 2 }

func (c *LELongTermKeyRequestNegativeReply) Marshal(b []byte) error { return marshal(c, b) }

// LELongTermKeyRequestNegativeReplyRP ...
type LELongTermKeyRequestNegativeReplyRP struct {
	Status           uint8
	ConnectionHandle uint16
}

func (c *LELongTermKeyRequestNegativeReplyRP) Unmarshal(b []byte) error { return unmarshal(c, b) }
