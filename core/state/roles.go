package state

import (
	"bytes"
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Role identifiers recognised across the ledger modules.
const (
	RoleBackend  = "ROLE_BACKEND"
	RoleGuardian = "ROLE_GUARDIAN"
	RoleAdmin    = "ROLE_ADMIN"
)

var (
	ownerKey        = ethcrypto.Keccak256([]byte("ledger-owner"))
	pendingOwnerKey = ethcrypto.Keccak256([]byte("ledger-owner-pending"))

	// ErrNotOwner indicates the caller does not hold ownership of the ledger.
	ErrNotOwner = errors.New("state: caller is not the owner")
	// ErrNotPendingOwner indicates the caller is not the nominated successor.
	ErrNotPendingOwner = errors.New("state: caller is not the pending owner")
)

// Owner returns the current owner address, or nil when ownership has not been
// bootstrapped yet.
func (m *Manager) Owner() ([]byte, error) {
	data, err := m.rawGet(ownerKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}

// SetOwner installs the initial owner. It fails when ownership has already
// been established; later changes must go through the two-step transfer.
func (m *Manager) SetOwner(addr []byte) error {
	if len(addr) == 0 {
		return fmt.Errorf("owner address must not be empty")
	}
	existing, err := m.Owner()
	if err != nil {
		return err
	}
	if len(existing) != 0 {
		return fmt.Errorf("owner already set")
	}
	return m.db.Put(ownerKey, append([]byte(nil), addr...))
}

// IsOwner reports whether the supplied address currently owns the ledger.
func (m *Manager) IsOwner(addr []byte) bool {
	owner, err := m.Owner()
	if err != nil || len(owner) == 0 {
		return false
	}
	return bytes.Equal(owner, addr)
}

// RequireOwner returns ErrNotOwner when the caller is not the current owner.
func (m *Manager) RequireOwner(caller []byte) error {
	if !m.IsOwner(caller) {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership nominates a successor. The transfer only completes once
// the successor calls AcceptOwnership.
func (m *Manager) TransferOwnership(caller, successor []byte) error {
	if err := m.RequireOwner(caller); err != nil {
		return err
	}
	if len(successor) == 0 {
		return fmt.Errorf("successor address must not be empty")
	}
	return m.db.Put(pendingOwnerKey, append([]byte(nil), successor...))
}

// AcceptOwnership completes a pending ownership transfer. Only the nominated
// successor may accept.
func (m *Manager) AcceptOwnership(caller []byte) error {
	pending, err := m.rawGet(pendingOwnerKey)
	if err != nil {
		return err
	}
	if len(pending) == 0 || !bytes.Equal(pending, caller) {
		return ErrNotPendingOwner
	}
	if err := m.db.Put(ownerKey, append([]byte(nil), caller...)); err != nil {
		return err
	}
	return m.db.Delete(pendingOwnerKey)
}

// PendingOwner returns the nominated successor, or nil when no transfer is in
// flight.
func (m *Manager) PendingOwner() ([]byte, error) {
	data, err := m.rawGet(pendingOwnerKey)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return append([]byte(nil), data...), nil
}
