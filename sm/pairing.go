// Package sm holds the Security-Manager pairing logic: the
// I/O-capability negotiation table and the key derivation used when a
// pairing completes.
package sm

import (
	"github.com/go-bt/bthost"
	"github.com/go-bt/bthost/hci/evt"
)

// PairingAction is the local user interaction a pairing will need, as
// inferred from Core Spec v5.0 Vol 3, Part C, 5.2.2.6 (Table 5.7).
type PairingAction int

const (
	// ActionAutomatic pairs without involving the user.
	ActionAutomatic PairingAction = iota

	// ActionGetConsent requests yes/no consent.
	ActionGetConsent

	// ActionDisplayPasskey displays a 6-digit value with "cancel."
	ActionDisplayPasskey

	// ActionComparePasskey displays a 6-digit value with "yes/no."
	ActionComparePasskey

	// ActionRequestPasskey requests a 6-digit value entry.
	ActionRequestPasskey
)

func (a PairingAction) String() string {
	switch a {
	case ActionAutomatic:
		return "automatic"
	case ActionGetConsent:
		return "get consent"
	case ActionDisplayPasskey:
		return "display passkey"
	case ActionComparePasskey:
		return "compare passkey"
	case ActionRequestPasskey:
		return "request passkey"
	default:
		return "unknown"
	}
}

// Method maps the action onto the delegate-facing pairing method.
func (a PairingAction) Method() bthost.PairingMethod {
	switch a {
	case ActionDisplayPasskey:
		return bthost.PairingMethodPasskeyDisplay
	case ActionComparePasskey:
		return bthost.PairingMethodPasskeyComparison
	case ActionRequestPasskey:
		return bthost.PairingMethodPasskeyEntry
	default:
		return bthost.PairingMethodConsent
	}
}

// hasDisplay/hasInput classify capabilities the way Table 5.7 does.
func hasDisplay(c bthost.IOCapability) bool {
	return c == bthost.IOCapDisplayOnly || c == bthost.IOCapDisplayYesNo || c == bthost.IOCapKeyboardDisplay
}

func hasInput(c bthost.IOCapability) bool {
	return c == bthost.IOCapKeyboardOnly || c == bthost.IOCapDisplayYesNo || c == bthost.IOCapKeyboardDisplay
}

// GetInitiatorPairingAction returns the initiating side's interaction
// for the given capability pair.
func GetInitiatorPairingAction(initiator, responder bthost.IOCapability) PairingAction {
	if initiator == bthost.IOCapNoInputNoOutput {
		return ActionAutomatic
	}
	if responder == bthost.IOCapNoInputNoOutput {
		if initiator == bthost.IOCapDisplayYesNo || initiator == bthost.IOCapKeyboardDisplay {
			return ActionGetConsent
		}
		return ActionAutomatic
	}
	if initiator == bthost.IOCapKeyboardOnly {
		return ActionRequestPasskey
	}
	if responder == bthost.IOCapKeyboardOnly {
		return ActionDisplayPasskey
	}
	// Both sides have displays from here on. A keyboard-display
	// initiator facing a display-only responder enters the passkey the
	// responder shows; everything else is numeric comparison.
	if initiator == bthost.IOCapKeyboardDisplay && responder == bthost.IOCapDisplayOnly {
		return ActionRequestPasskey
	}
	if initiator == bthost.IOCapDisplayOnly && responder == bthost.IOCapKeyboardDisplay {
		return ActionDisplayPasskey
	}
	return ActionComparePasskey
}

// GetResponderPairingAction returns the responding side's interaction
// for the given capability pair.
func GetResponderPairingAction(initiator, responder bthost.IOCapability) PairingAction {
	if initiator == bthost.IOCapNoInputNoOutput && responder == bthost.IOCapKeyboardOnly {
		return ActionGetConsent
	}
	if responder == bthost.IOCapNoInputNoOutput &&
		(initiator == bthost.IOCapDisplayYesNo || initiator == bthost.IOCapKeyboardDisplay) {
		return ActionGetConsent
	}
	// Otherwise the table is symmetric with the roles swapped.
	return GetInitiatorPairingAction(responder, initiator)
}

// GetExpectedEvent returns the pairing event the local side should see
// next for the given capability pair.
func GetExpectedEvent(local, peer bthost.IOCapability) int {
	if local == bthost.IOCapNoInputNoOutput || peer == bthost.IOCapNoInputNoOutput {
		return evt.UserConfirmationRequestCode
	}
	if local == bthost.IOCapKeyboardOnly {
		return evt.UserPasskeyRequestCode
	}
	if peer == bthost.IOCapKeyboardOnly {
		return evt.UserPasskeyNotificationCode
	}
	if local == bthost.IOCapKeyboardDisplay && peer == bthost.IOCapDisplayOnly {
		return evt.UserPasskeyRequestCode
	}
	if local == bthost.IOCapDisplayOnly && peer == bthost.IOCapKeyboardDisplay {
		return evt.UserPasskeyNotificationCode
	}
	return evt.UserConfirmationRequestCode
}

// IsPairingAuthenticated reports whether the pair of capabilities can
// produce an authenticated (MITM-protected) key.
func IsPairingAuthenticated(local, peer bthost.IOCapability) bool {
	if local == bthost.IOCapNoInputNoOutput || peer == bthost.IOCapNoInputNoOutput {
		return false
	}
	if local == bthost.IOCapKeyboardOnly || peer == bthost.IOCapKeyboardOnly {
		return true
	}
	// Numeric comparison authenticates only when both sides can confirm.
	if hasDisplay(local) && hasInput(local) && hasDisplay(peer) && hasInput(peer) {
		return true
	}
	// Passkey entry between a keyboard-display and a display-only side.
	if local == bthost.IOCapKeyboardDisplay && peer == bthost.IOCapDisplayOnly {
		return true
	}
	if local == bthost.IOCapDisplayOnly && peer == bthost.IOCapKeyboardDisplay {
		return true
	}
	return false
}
