package events

import (
	"encoding/hex"
	"math/big"
)

const (
	// TypeMintSettled is emitted whenever a bridge-backed mint completes.
	TypeMintSettled = "mint.settled"
	// TypeBurnSettled is emitted whenever a bridge-backed burn completes.
	TypeBurnSettled = "burn.settled"
	// TypeTokenTransferred is emitted on successful balance transfers.
	TypeTokenTransferred = "token.transferred"
	// TypeTokenApproved is emitted when an allowance is set.
	TypeTokenApproved = "token.approved"
)

func amountString(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}

func addrString(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

// MintSettled records a completed mint against a bridge buffer.
type MintSettled struct {
	Bridge    [20]byte
	Recipient [20]byte
	Amount    *big.Int
}

func (MintSettled) EventType() string { return TypeMintSettled }

func (e MintSettled) Attributes() map[string]string {
	return map[string]string{
		"bridge":    addrString(e.Bridge),
		"recipient": addrString(e.Recipient),
		"amount":    amountString(e.Amount),
	}
}

// BurnSettled records a completed burn that restored bridge capacity.
type BurnSettled struct {
	Bridge [20]byte
	From   [20]byte
	Amount *big.Int
}

func (BurnSettled) EventType() string { return TypeBurnSettled }

func (e BurnSettled) Attributes() map[string]string {
	return map[string]string{
		"bridge": addrString(e.Bridge),
		"from":   addrString(e.From),
		"amount": amountString(e.Amount),
	}
}

// TokenTransferred records a balance movement between two accounts.
type TokenTransferred struct {
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (TokenTransferred) EventType() string { return TypeTokenTransferred }

func (e TokenTransferred) Attributes() map[string]string {
	return map[string]string{
		"from":   addrString(e.From),
		"to":     addrString(e.To),
		"amount": amountString(e.Amount),
	}
}

// TokenApproved records an allowance grant from an owner to a spender.
type TokenApproved struct {
	Owner   [20]byte
	Spender [20]byte
	Amount  *big.Int
}

func (TokenApproved) EventType() string { return TypeTokenApproved }

func (e TokenApproved) Attributes() map[string]string {
	return map[string]string{
		"owner":   addrString(e.Owner),
		"spender": addrString(e.Spender),
		"amount":  amountString(e.Amount),
	}
}
