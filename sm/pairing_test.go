package sm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci/evt"
)

var allCaps = []bthost.IOCapability{
	bthost.IOCapDisplayOnly,
	bthost.IOCapDisplayYesNo,
	bthost.IOCapKeyboardOnly,
	bthost.IOCapNoInputNoOutput,
	bthost.IOCapKeyboardDisplay,
}

func TestInitiatorPairingAction(t *testing.T) {
	for _, tt := range []struct {
		initiator, responder bthost.IOCapability
		want                 PairingAction
	}{
		{bthost.IOCapNoInputNoOutput, bthost.IOCapNoInputNoOutput, ActionAutomatic},
		{bthost.IOCapNoInputNoOutput, bthost.IOCapDisplayOnly, ActionAutomatic},
		{bthost.IOCapNoInputNoOutput, bthost.IOCapDisplayYesNo, ActionAutomatic},
		{bthost.IOCapNoInputNoOutput, bthost.IOCapKeyboardOnly, ActionAutomatic},
		{bthost.IOCapNoInputNoOutput, bthost.IOCapKeyboardDisplay, ActionAutomatic},
		{bthost.IOCapDisplayOnly, bthost.IOCapNoInputNoOutput, ActionAutomatic},
		{bthost.IOCapKeyboardOnly, bthost.IOCapNoInputNoOutput, ActionAutomatic},
		{bthost.IOCapDisplayYesNo, bthost.IOCapNoInputNoOutput, ActionGetConsent},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapNoInputNoOutput, ActionGetConsent},

		{bthost.IOCapKeyboardOnly, bthost.IOCapDisplayOnly, ActionRequestPasskey},
		{bthost.IOCapKeyboardOnly, bthost.IOCapDisplayYesNo, ActionRequestPasskey},
		{bthost.IOCapKeyboardOnly, bthost.IOCapKeyboardOnly, ActionRequestPasskey},
		{bthost.IOCapKeyboardOnly, bthost.IOCapKeyboardDisplay, ActionRequestPasskey},

		{bthost.IOCapDisplayOnly, bthost.IOCapKeyboardOnly, ActionDisplayPasskey},
		{bthost.IOCapDisplayYesNo, bthost.IOCapKeyboardOnly, ActionDisplayPasskey},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapKeyboardOnly, ActionDisplayPasskey},

		{bthost.IOCapKeyboardDisplay, bthost.IOCapDisplayOnly, ActionRequestPasskey},
		{bthost.IOCapDisplayOnly, bthost.IOCapKeyboardDisplay, ActionDisplayPasskey},

		{bthost.IOCapDisplayOnly, bthost.IOCapDisplayOnly, ActionComparePasskey},
		{bthost.IOCapDisplayOnly, bthost.IOCapDisplayYesNo, ActionComparePasskey},
		{bthost.IOCapDisplayYesNo, bthost.IOCapDisplayOnly, ActionComparePasskey},
		{bthost.IOCapDisplayYesNo, bthost.IOCapDisplayYesNo, ActionComparePasskey},
		{bthost.IOCapDisplayYesNo, bthost.IOCapKeyboardDisplay, ActionComparePasskey},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapDisplayYesNo, ActionComparePasskey},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapKeyboardDisplay, ActionComparePasskey},
	} {
		got := GetInitiatorPairingAction(tt.initiator, tt.responder)
		assert.Equal(t, tt.want, got, "initiator %d vs responder %d", tt.initiator, tt.responder)
	}
}

func TestResponderPairingAction(t *testing.T) {
	// special cases that break the mirror symmetry
	assert.Equal(t, ActionGetConsent,
		GetResponderPairingAction(bthost.IOCapNoInputNoOutput, bthost.IOCapKeyboardOnly))
	assert.Equal(t, ActionGetConsent,
		GetResponderPairingAction(bthost.IOCapDisplayYesNo, bthost.IOCapNoInputNoOutput))
	assert.Equal(t, ActionGetConsent,
		GetResponderPairingAction(bthost.IOCapKeyboardDisplay, bthost.IOCapNoInputNoOutput))

	// everywhere else the responder sees the initiator table with the
	// roles swapped
	for _, init := range allCaps {
		for _, resp := range allCaps {
			if init == bthost.IOCapNoInputNoOutput && resp == bthost.IOCapKeyboardOnly {
				continue
			}
			if resp == bthost.IOCapNoInputNoOutput &&
				(init == bthost.IOCapDisplayYesNo || init == bthost.IOCapKeyboardDisplay) {
				continue
			}
			assert.Equal(t, GetInitiatorPairingAction(resp, init),
				GetResponderPairingAction(init, resp),
				"initiator %d vs responder %d", init, resp)
		}
	}
}

func TestExpectedEvent(t *testing.T) {
	for _, tt := range []struct {
		local, peer bthost.IOCapability
		want        int
	}{
		{bthost.IOCapNoInputNoOutput, bthost.IOCapNoInputNoOutput, evt.UserConfirmationRequestCode},
		{bthost.IOCapNoInputNoOutput, bthost.IOCapKeyboardOnly, evt.UserConfirmationRequestCode},
		{bthost.IOCapDisplayYesNo, bthost.IOCapNoInputNoOutput, evt.UserConfirmationRequestCode},

		{bthost.IOCapKeyboardOnly, bthost.IOCapDisplayOnly, evt.UserPasskeyRequestCode},
		{bthost.IOCapKeyboardOnly, bthost.IOCapKeyboardOnly, evt.UserPasskeyRequestCode},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapDisplayOnly, evt.UserPasskeyRequestCode},

		{bthost.IOCapDisplayOnly, bthost.IOCapKeyboardOnly, evt.UserPasskeyNotificationCode},
		{bthost.IOCapDisplayOnly, bthost.IOCapKeyboardDisplay, evt.UserPasskeyNotificationCode},

		{bthost.IOCapDisplayYesNo, bthost.IOCapDisplayYesNo, evt.UserConfirmationRequestCode},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapKeyboardDisplay, evt.UserConfirmationRequestCode},
		{bthost.IOCapDisplayOnly, bthost.IOCapDisplayOnly, evt.UserConfirmationRequestCode},
	} {
		got := GetExpectedEvent(tt.local, tt.peer)
		assert.Equal(t, tt.want, got, "local %d vs peer %d", tt.local, tt.peer)
	}
}

func TestIsPairingAuthenticated(t *testing.T) {
	for _, tt := range []struct {
		local, peer bthost.IOCapability
		want        bool
	}{
		{bthost.IOCapNoInputNoOutput, bthost.IOCapNoInputNoOutput, false},
		{bthost.IOCapNoInputNoOutput, bthost.IOCapKeyboardDisplay, false},
		{bthost.IOCapDisplayYesNo, bthost.IOCapNoInputNoOutput, false},

		{bthost.IOCapKeyboardOnly, bthost.IOCapDisplayOnly, true},
		{bthost.IOCapDisplayOnly, bthost.IOCapKeyboardOnly, true},
		{bthost.IOCapKeyboardOnly, bthost.IOCapKeyboardOnly, true},

		{bthost.IOCapDisplayYesNo, bthost.IOCapDisplayYesNo, true},
		{bthost.IOCapDisplayYesNo, bthost.IOCapKeyboardDisplay, true},
		{bthost.IOCapKeyboardDisplay, bthost.IOCapKeyboardDisplay, true},

		{bthost.IOCapKeyboardDisplay, bthost.IOCapDisplayOnly, true},
		{bthost.IOCapDisplayOnly, bthost.IOCapKeyboardDisplay, true},

		{bthost.IOCapDisplayOnly, bthost.IOCapDisplayOnly, false},
		{bthost.IOCapDisplayOnly, bthost.IOCapDisplayYesNo, false},
		{bthost.IOCapDisplayYesNo, bthost.IOCapDisplayOnly, false},
	} {
		got := IsPairingAuthenticated(tt.local, tt.peer)
		assert.Equal(t, tt.want, got, "local %d vs peer %d", tt.local, tt.peer)
	}
}

func TestActionMethod(t *testing.T) {
	assert.Equal(t, bthost.PairingMethodConsent, ActionAutomatic.Method())
	assert.Equal(t, bthost.PairingMethodConsent, ActionGetConsent.Method())
	assert.Equal(t, bthost.PairingMethodPasskeyDisplay, ActionDisplayPasskey.Method())
	assert.Equal(t, bthost.PairingMethodPasskeyComparison, ActionComparePasskey.Method())
	assert.Equal(t, bthost.PairingMethodPasskeyEntry, ActionRequestPasskey.Method())
}
