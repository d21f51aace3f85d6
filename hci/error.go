package hci

import "fmt"

// ErrCommand is a controller status code returned in a Command Complete
// or Command Status event [Vol 2, Part D, 1.3].
type ErrCommand byte

const (
	ErrSuccess           ErrCommand = 0x00
	ErrUnknownCommand    ErrCommand = 0x01
	ErrConnID            ErrCommand = 0x02
	ErrHardware          ErrCommand = 0x03
	ErrAuthFailure       ErrCommand = 0x05
	ErrPinOrKeyMissing   ErrCommand = 0x06
	ErrMemCapacity       ErrCommand = 0x07
	ErrConnTimeout       ErrCommand = 0x08
	ErrConnLimit         ErrCommand = 0x09
	ErrACLConnExists     ErrCommand = 0x0b
	ErrCommandDisallowed ErrCommand = 0x0c
	ErrLimitedResource   ErrCommand = 0x0d
	ErrSecurityReason    ErrCommand = 0x0e
	ErrInvalidParams     ErrCommand = 0x12
	ErrRemoteUser        ErrCommand = 0x13
	ErrLocalHost         ErrCommand = 0x16
	ErrRepeatedAttempts  ErrCommand = 0x17
	ErrPairingNotAllowed ErrCommand = 0x18
	ErrUnspecified       ErrCommand = 0x1f
	ErrLMPTimeout        ErrCommand = 0x22
)

var errCmdDesc = map[ErrCommand]string{
	ErrSuccess:           "success",
	ErrUnknownCommand:    "unknown HCI command",
	ErrConnID:            "unknown connection identifier",
	ErrHardware:          "hardware failure",
	ErrAuthFailure:       "authentication failure",
	ErrPinOrKeyMissing:   "PIN or key missing",
	ErrMemCapacity:       "memory capacity exceeded",
	ErrConnTimeout:       "connection timeout",
	ErrConnLimit:         "connection limit exceeded",
	ErrACLConnExists:     "ACL connection already exists",
	ErrCommandDisallowed: "command disallowed",
	ErrLimitedResource:   "connection rejected due to limited resources",
	ErrSecurityReason:    "connection rejected due to security reasons",
	ErrInvalidParams:     "invalid HCI command parameters",
	ErrRemoteUser:        "remote user terminated connection",
	ErrLocalHost:         "connection terminated by local host",
	ErrRepeatedAttempts:  "repeated attempts",
	ErrPairingNotAllowed: "pairing not allowed",
	ErrUnspecified:       "unspecified error",
	ErrLMPTimeout:        "LMP response timeout",
}

func (e ErrCommand) Error() string {
	if d, ok := errCmdDesc[e]; ok {
		return d
	}
	return fmt.Sprintf("controller error 0x%02X", byte(e))
}
