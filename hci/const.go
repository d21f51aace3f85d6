package hci

import "time"

// HCI packet types
const (
	pktTypeCommand uint8 = 0x01
	pktTypeACLData uint8 = 0x02
	pktTypeSCOData uint8 = 0x03
	pktTypeEvent   uint8 = 0x04
	pktTypeVendor  uint8 = 0xFF
)

const (
	chCmdBufChanSize    = 16
	// large enough for the biggest command we send (Write Local Name,
	// 248 parameter bytes plus the 4-byte header)
	chCmdBufElementSize = 256
	chCmdBufTimeout     = time.Second * 5
)

const (
	roleMaster = 0x00
	roleSlave  = 0x01
)
