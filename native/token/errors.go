package token

import "errors"

var (
	// ErrZeroAmount rejects mutations with a zero amount.
	ErrZeroAmount = errors.New("token: amount cannot be 0")
	// ErrZeroAddress rejects null account identities.
	ErrZeroAddress = errors.New("token: address must not be zero")
	// ErrMaxSupplyExceeded indicates a mint would push supply past its cap.
	ErrMaxSupplyExceeded = errors.New("token: max supply exceeded")
	// ErrInsufficientBalance indicates the debited account cannot cover the
	// amount.
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	// ErrInsufficientAllowance indicates the spender's allowance cannot cover
	// the amount.
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	// ErrTransferToLedger rejects transfers addressed to the ledger's own
	// identity.
	ErrTransferToLedger = errors.New("token: transfer to ledger identity")
	// ErrBalanceOverflow indicates a balance would not fit its storage width.
	ErrBalanceOverflow = errors.New("token: balance overflows storage width")
)
