package state

import (
	"errors"
	"testing"

	"bridgeledger/storage"
)

type kvRecord struct {
	Value []byte
}

func newTestManager() *Manager {
	return NewManager(storage.NewMemDB())
}

func TestKVRoundTrip(t *testing.T) {
	m := newTestManager()
	key := []byte("module/record")

	ok, err := m.KVGet(key, new(kvRecord))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatal("expected missing key")
	}

	if err := m.KVPut(key, kvRecord{Value: []byte("hello")}); err != nil {
		t.Fatalf("put: %v", err)
	}
	var out kvRecord
	ok, err = m.KVGet(key, &out)
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(out.Value) != "hello" {
		t.Fatalf("expected hello, got %q", out.Value)
	}

	if err := m.KVDelete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	ok, err = m.KVGet(key, new(kvRecord))
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if ok {
		t.Fatal("expected key removed")
	}
}

func TestKVEmptyKeyRejected(t *testing.T) {
	m := newTestManager()
	if err := m.KVPut(nil, kvRecord{}); err == nil {
		t.Fatal("expected empty key rejection")
	}
	if _, err := m.KVGet(nil, new(kvRecord)); err == nil {
		t.Fatal("expected empty key rejection")
	}
	if err := m.KVDelete(nil); err == nil {
		t.Fatal("expected empty key rejection")
	}
}

func TestKVAppendDeduplicates(t *testing.T) {
	m := newTestManager()
	key := []byte("module/list")
	if err := m.KVAppend(key, []byte("a")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.KVAppend(key, []byte("b")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := m.KVAppend(key, []byte("a")); err != nil {
		t.Fatalf("append duplicate: %v", err)
	}
	var list [][]byte
	if err := m.KVGetList(key, &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(list))
	}
}

func TestKVGetListMissingKey(t *testing.T) {
	m := newTestManager()
	var list [][]byte
	if err := m.KVGetList([]byte("module/absent"), &list); err != nil {
		t.Fatalf("get list: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Fatalf("expected empty slice, got %v", list)
	}
}

func TestRoles(t *testing.T) {
	m := newTestManager()
	addr := []byte{0x01}
	other := []byte{0x02}

	if m.HasRole(RoleBackend, addr) {
		t.Fatal("role must start empty")
	}
	if err := m.SetRole(RoleBackend, addr); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if err := m.SetRole(RoleBackend, addr); err != nil {
		t.Fatalf("duplicate set role: %v", err)
	}
	if err := m.SetRole(RoleBackend, other); err != nil {
		t.Fatalf("set role: %v", err)
	}
	if !m.HasRole(RoleBackend, addr) || !m.HasRole(RoleBackend, other) {
		t.Fatal("expected both members")
	}
	members, err := m.RoleMembers(RoleBackend)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}

	if err := m.RevokeRole(RoleBackend, addr); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if m.HasRole(RoleBackend, addr) {
		t.Fatal("expected role revoked")
	}
	// Revoking an absent member is a no-op.
	if err := m.RevokeRole(RoleBackend, addr); err != nil {
		t.Fatalf("revoke absent: %v", err)
	}
}

func TestOwnership(t *testing.T) {
	m := newTestManager()
	first := []byte{0x01}
	second := []byte{0x02}

	got, err := m.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no owner, got %x", got)
	}
	if err := m.SetOwner(first); err != nil {
		t.Fatalf("set owner: %v", err)
	}
	if err := m.SetOwner(second); err == nil {
		t.Fatal("second set owner must fail")
	}
	if !m.IsOwner(first) || m.IsOwner(second) {
		t.Fatal("ownership check mismatch")
	}
	if err := m.RequireOwner(second); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected not owner, got %v", err)
	}

	if err := m.TransferOwnership(second, first); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("non-owner must not nominate, got %v", err)
	}
	if err := m.TransferOwnership(first, second); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	pending, err := m.PendingOwner()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if string(pending) != string(second) {
		t.Fatalf("expected pending successor, got %x", pending)
	}
	if err := m.AcceptOwnership(first); !errors.Is(err, ErrNotPendingOwner) {
		t.Fatalf("wrong acceptor must fail, got %v", err)
	}
	if err := m.AcceptOwnership(second); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !m.IsOwner(second) || m.IsOwner(first) {
		t.Fatal("ownership must have moved")
	}
	pending, err = m.PendingOwner()
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if pending != nil {
		t.Fatalf("pending entry must be cleared, got %x", pending)
	}
}
