// Package gap is the Generic Access Profile layer: discovery and
// discoverable sessions, connection establishment and the pairing
// driver, tied together by the Adapter.
package gap

import (
	"fmt"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci"
)

var logger = bthost.GetLogger().ChildLogger(map[string]interface{}{"pkg": "gap"})

// commander is the slice of the command transport the managers need.
// *hci.HCI satisfies it; tests substitute a fake.
type commander interface {
	Send(c hci.Command, r hci.CommandRP) error
	SendCommand(c hci.Command, fn hci.CompleteFunc) (hci.TransactionID, error)
	Subscribe(code int, fn hci.HandlerFunc) error
	SubscribeLE(subcode int, fn hci.HandlerFunc) error
	Addr() bthost.Addr
}

// wireAddr converts the 6-byte little-endian form received in events to
// the printable Addr form the cache is keyed by.
func wireAddr(t bthost.AddrType, b [6]byte) bthost.Addr {
	return bthost.NewAddr(t, fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		b[5], b[4], b[3], b[2], b[1], b[0]))
}

// statusErr folds a completion's transport error and HCI status byte
// into one error.
func statusErr(err error, ret []byte) error {
	if err != nil {
		return err
	}
	if len(ret) > 0 && ret[0] != 0x00 {
		return hci.ErrCommand(ret[0])
	}
	return nil
}

// logCompletion discards a command completion, logging failures. Used
// for stop/rollback commands whose outcome nobody waits for.
func logCompletion(what string) hci.CompleteFunc {
	return func(err error, ret []byte) {
		switch {
		case err != nil:
			logger.Errorf("%s: %v", what, err)
		case len(ret) > 0 && ret[0] != 0x00:
			logger.Errorf("%s: %v", what, hci.ErrCommand(ret[0]))
		}
	}
}
