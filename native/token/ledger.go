package token

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"bridgeledger/core/events"
)

// Storage abstracts the subset of state manager functionality required by the
// token ledger.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
}

var (
	accountPrefix   = []byte("token/acct/")
	allowancePrefix = []byte("token/allow/")
	supplyKey       = []byte("token/supply")
)

type accountRecord struct {
	Balance *big.Int
}

type allowanceRecord struct {
	Amount *big.Int
}

type supplyRecord struct {
	Total *big.Int
}

func accountKey(addr [20]byte) []byte {
	suffix := hex.EncodeToString(addr[:])
	key := make([]byte, len(accountPrefix)+len(suffix))
	copy(key, accountPrefix)
	copy(key[len(accountPrefix):], suffix)
	return key
}

func allowanceKey(owner, spender [20]byte) []byte {
	ownerHex := hex.EncodeToString(owner[:])
	spenderHex := hex.EncodeToString(spender[:])
	key := make([]byte, 0, len(allowancePrefix)+len(ownerHex)+1+len(spenderHex))
	key = append(key, allowancePrefix...)
	key = append(key, ownerHex...)
	key = append(key, '/')
	key = append(key, spenderHex...)
	return key
}

var zeroAddr [20]byte

// Ledger is the token balance and total supply store. Bridge-initiated mints
// and burns go through the bridge limit registry before reaching it; the
// composition layer owns that ordering.
type Ledger struct {
	st        Storage
	emitter   events.Emitter
	self      [20]byte
	maxSupply *big.Int
}

// NewLedger constructs a ledger bound to the provided storage backend. The
// self identity is the ledger's own address; transfers addressed to it are
// rejected. A nil maxSupply leaves supply unbounded.
func NewLedger(st Storage, self [20]byte, maxSupply *big.Int) *Ledger {
	l := &Ledger{st: st, emitter: events.NoopEmitter{}, self: self}
	if maxSupply != nil {
		l.maxSupply = new(big.Int).Set(maxSupply)
	}
	return l
}

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if l == nil {
		return
	}
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// MaxSupply returns the configured supply ceiling, or nil when unbounded.
func (l *Ledger) MaxSupply() *big.Int {
	if l == nil || l.maxSupply == nil {
		return nil
	}
	return new(big.Int).Set(l.maxSupply)
}

// BalanceOf returns the balance for the account, zero for unknown accounts.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token: ledger not initialised")
	}
	var record accountRecord
	ok, err := l.st.KVGet(accountKey(addr), &record)
	if err != nil {
		return nil, err
	}
	if !ok || record.Balance == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(record.Balance), nil
}

// Allowance returns the amount the spender may debit from the owner.
func (l *Ledger) Allowance(owner, spender [20]byte) (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token: ledger not initialised")
	}
	var record allowanceRecord
	ok, err := l.st.KVGet(allowanceKey(owner, spender), &record)
	if err != nil {
		return nil, err
	}
	if !ok || record.Amount == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(record.Amount), nil
}

// TotalSupply returns the current total supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil {
		return nil, fmt.Errorf("token: ledger not initialised")
	}
	var record supplyRecord
	ok, err := l.st.KVGet(supplyKey, &record)
	if err != nil {
		return nil, err
	}
	if !ok || record.Total == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(record.Total), nil
}

func (l *Ledger) putBalance(addr [20]byte, balance *big.Int) error {
	if _, overflow := uint256.FromBig(balance); overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, balance)
	}
	if balance.Sign() == 0 {
		return l.st.KVDelete(accountKey(addr))
	}
	return l.st.KVPut(accountKey(addr), accountRecord{Balance: balance})
}

func (l *Ledger) putSupply(total *big.Int) error {
	if _, overflow := uint256.FromBig(total); overflow {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, total)
	}
	return l.st.KVPut(supplyKey, supplyRecord{Total: total})
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return ErrZeroAmount
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrZeroAmount)
	}
	return nil
}

// Mint credits the recipient and grows total supply. Supply never exceeds the
// configured cap.
func (l *Ledger) Mint(bridge, to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to == zeroAddr {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	newSupply := new(big.Int).Add(supply, amount)
	if l.maxSupply != nil && newSupply.Cmp(l.maxSupply) > 0 {
		return fmt.Errorf("%w: supply %s, max %s", ErrMaxSupplyExceeded, newSupply, l.maxSupply)
	}
	balance, err := l.BalanceOf(to)
	if err != nil {
		return err
	}
	if err := l.putBalance(to, new(big.Int).Add(balance, amount)); err != nil {
		return err
	}
	if err := l.putSupply(newSupply); err != nil {
		return err
	}
	l.emitter.Emit(events.MintSettled{Bridge: bridge, Recipient: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Burn debits the holder and shrinks total supply. When the holder is not the
// bridge itself the bridge spends down its allowance from the holder.
func (l *Ledger) Burn(bridge, from [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if from == zeroAddr {
		return fmt.Errorf("%w: holder", ErrZeroAddress)
	}
	if from != bridge {
		if err := l.spendAllowance(from, bridge, amount); err != nil {
			return err
		}
	}
	balance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, balance, amount)
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	if err := l.putBalance(from, new(big.Int).Sub(balance, amount)); err != nil {
		return err
	}
	if err := l.putSupply(new(big.Int).Sub(supply, amount)); err != nil {
		return err
	}
	l.emitter.Emit(events.BurnSettled{Bridge: bridge, From: from, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves balance between two accounts. Transfers addressed to the
// ledger's own identity are rejected.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if to == zeroAddr {
		return fmt.Errorf("%w: recipient", ErrZeroAddress)
	}
	if to == l.self {
		return ErrTransferToLedger
	}
	balance, err := l.BalanceOf(from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: balance %s, requested %s", ErrInsufficientBalance, balance, amount)
	}
	if from != to {
		if err := l.putBalance(from, new(big.Int).Sub(balance, amount)); err != nil {
			return err
		}
		toBalance, err := l.BalanceOf(to)
		if err != nil {
			return err
		}
		if err := l.putBalance(to, new(big.Int).Add(toBalance, amount)); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.TokenTransferred{From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// TransferFrom moves balance on behalf of the owner, spending the caller's
// allowance.
func (l *Ledger) TransferFrom(spender, from, to [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if err := validateAmount(amount); err != nil {
		return err
	}
	if spender != from {
		if err := l.spendAllowance(from, spender, amount); err != nil {
			return err
		}
	}
	return l.Transfer(from, to, amount)
}

// Approve sets the spender's allowance over the owner's balance. A zero amount
// clears the allowance entry.
func (l *Ledger) Approve(owner, spender [20]byte, amount *big.Int) error {
	if l == nil {
		return fmt.Errorf("token: ledger not initialised")
	}
	if spender == zeroAddr {
		return fmt.Errorf("%w: spender", ErrZeroAddress)
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("%w: negative amount", ErrZeroAmount)
	}
	if amount.Sign() == 0 {
		if err := l.st.KVDelete(allowanceKey(owner, spender)); err != nil {
			return err
		}
	} else if err := l.st.KVPut(allowanceKey(owner, spender), allowanceRecord{Amount: amount}); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenApproved{Owner: owner, Spender: spender, Amount: new(big.Int).Set(amount)})
	return nil
}

func (l *Ledger) spendAllowance(owner, spender [20]byte, amount *big.Int) error {
	allowance, err := l.Allowance(owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: allowance %s, requested %s", ErrInsufficientAllowance, allowance, amount)
	}
	remaining := new(big.Int).Sub(allowance, amount)
	if remaining.Sign() == 0 {
		return l.st.KVDelete(allowanceKey(owner, spender))
	}
	return l.st.KVPut(allowanceKey(owner, spender), allowanceRecord{Amount: remaining})
}
