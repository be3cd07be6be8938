package core

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"bridgeledger/core/events"
	"bridgeledger/core/state"
	"bridgeledger/native/common"
	"bridgeledger/native/limits"
	"bridgeledger/native/pause"
	"bridgeledger/native/token"
	"bridgeledger/storage"
)

var (
	nodeSelf = [20]byte{0xff}
	owner    = [20]byte{0x01}
	guardian = [20]byte{0x02}
	bridge   = [20]byte{0x0a}
	holder   = [20]byte{0x11}
	stranger = [20]byte{0x99}
)

type captureEmitter struct {
	emitted []events.Event
}

func (c *captureEmitter) Emit(evt events.Event) {
	c.emitted = append(c.emitted, evt)
}

func newTestNode(t *testing.T, maxSupply *big.Int) (*Node, *captureEmitter, *int64) {
	t.Helper()
	node := NewNode(storage.NewMemDB(), nodeSelf, maxSupply)
	emitter := &captureEmitter{}
	node.SetEmitter(emitter)
	now := int64(1_000_000)
	node.SetClock(func() time.Time { return time.Unix(now, 0) })
	if err := node.Bootstrap(owner, time.Hour, nil); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return node, emitter, &now
}

func registerBridge(t *testing.T, node *Node, cap, rate *big.Int) {
	t.Helper()
	if err := node.AddBridge(owner, bridge, cap, rate); err != nil {
		t.Fatalf("add bridge: %v", err)
	}
}

func TestBootstrap(t *testing.T) {
	backend := [20]byte{0x42}
	node := NewNode(storage.NewMemDB(), nodeSelf, nil)
	if err := node.Bootstrap(owner, time.Hour, [][20]byte{backend}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	got, err := node.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if string(got) != string(owner[:]) {
		t.Fatalf("expected owner installed, got %x", got)
	}
	if !node.HasRole(state.RoleBackend, backend) {
		t.Fatal("expected backend role granted")
	}

	// Re-bootstrapping with a different owner must not overwrite.
	if err := node.Bootstrap(stranger, time.Hour, nil); err != nil {
		t.Fatalf("re-bootstrap: %v", err)
	}
	got, err = node.Owner()
	if err != nil {
		t.Fatalf("owner: %v", err)
	}
	if string(got) != string(owner[:]) {
		t.Fatalf("owner must survive re-bootstrap, got %x", got)
	}
}

func TestMintDepletesBufferAndCreditsHolder(t *testing.T) {
	node, emitter, _ := newTestNode(t, nil)
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(10))

	if err := node.Mint(bridge, holder, big.NewInt(4_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	balance, err := node.BalanceOf(holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(4_000)) != 0 {
		t.Fatalf("expected balance 4000, got %s", balance)
	}
	buffer, err := node.Buffer(bridge)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if buffer.Cmp(big.NewInt(6_000)) != 0 {
		t.Fatalf("expected buffer 6000 after midpoint deplete, got %s", buffer)
	}

	var sawMint bool
	for _, evt := range emitter.emitted {
		if evt.EventType() == events.TypeMintSettled {
			sawMint = true
		}
	}
	if !sawMint {
		t.Fatal("expected a mint event after commit")
	}
}

func TestMintFromUnregisteredBridge(t *testing.T) {
	node, _, _ := newTestNode(t, nil)
	err := node.Mint(stranger, holder, big.NewInt(1))
	if !errors.Is(err, limits.ErrRateLimitHit) {
		t.Fatalf("expected rate limit hit, got %v", err)
	}
}

func TestBurnReplenishesBuffer(t *testing.T) {
	node, _, _ := newTestNode(t, nil)
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(0))

	if err := node.Mint(bridge, bridge, big.NewInt(4_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := node.Burn(bridge, bridge, big.NewInt(4_000)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	buffer, err := node.Buffer(bridge)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if buffer.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("round trip must restore the midpoint, got %s", buffer)
	}
	supply, err := node.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Sign() != 0 {
		t.Fatalf("expected zero supply, got %s", supply)
	}
}

func TestFailedMintRollsBackBufferDeplete(t *testing.T) {
	node, emitter, _ := newTestNode(t, big.NewInt(3_000))
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(0))
	emitter.emitted = nil

	// The deplete succeeds but the supply cap rejects the mint; the whole
	// operation must leave no trace.
	err := node.Mint(bridge, holder, big.NewInt(5_000))
	if !errors.Is(err, token.ErrMaxSupplyExceeded) {
		t.Fatalf("expected supply cap rejection, got %v", err)
	}
	buffer, err := node.Buffer(bridge)
	if err != nil {
		t.Fatalf("buffer: %v", err)
	}
	if buffer.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("failed mint must not deplete the buffer, got %s", buffer)
	}
	supply, err := node.TotalSupply()
	if err != nil {
		t.Fatalf("supply: %v", err)
	}
	if supply.Sign() != 0 {
		t.Fatalf("expected zero supply, got %s", supply)
	}
	if len(emitter.emitted) != 0 {
		t.Fatalf("failed operation must emit nothing, got %v", emitter.emitted)
	}
}

func TestPauseBlocksMutationsUntilExpiry(t *testing.T) {
	node, _, now := newTestNode(t, nil)
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(0))

	if err := node.GrantPauseGuardian(owner, guardian); err != nil {
		t.Fatalf("grant guardian: %v", err)
	}
	if err := node.Pause(guardian); err != nil {
		t.Fatalf("pause: %v", err)
	}

	if err := node.Mint(bridge, holder, big.NewInt(100)); !errors.Is(err, common.ErrPaused) {
		t.Fatalf("mint during pause must fail, got %v", err)
	}
	if err := node.Transfer(holder, stranger, big.NewInt(1)); !errors.Is(err, common.ErrPaused) {
		t.Fatalf("transfer during pause must fail, got %v", err)
	}
	if err := node.AddBridge(owner, stranger, big.NewInt(20_000), nil); !errors.Is(err, common.ErrPaused) {
		t.Fatalf("bridge admin during pause must fail, got %v", err)
	}

	// Reads keep working while paused.
	if _, err := node.Buffer(bridge); err != nil {
		t.Fatalf("buffer read during pause: %v", err)
	}
	st, err := node.PauseState()
	if err != nil {
		t.Fatalf("pause state: %v", err)
	}
	if !st.Paused {
		t.Fatal("expected paused state")
	}

	// The bootstrap window is one hour; past it the pause lapses on its own.
	*now += 3_601
	if err := node.Mint(bridge, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint after expiry: %v", err)
	}
}

func TestOwnerUnpauseRestoresOperations(t *testing.T) {
	node, _, _ := newTestNode(t, nil)
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(0))
	if err := node.GrantPauseGuardian(owner, guardian); err != nil {
		t.Fatalf("grant guardian: %v", err)
	}
	if err := node.Pause(guardian); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if err := node.Unpause(owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}
	if err := node.Mint(bridge, holder, big.NewInt(100)); err != nil {
		t.Fatalf("mint after unpause: %v", err)
	}
	// The guardian was consumed by the unpause.
	if err := node.Pause(guardian); !errors.Is(err, pause.ErrNotGuardian) {
		t.Fatalf("consumed guardian must not pause, got %v", err)
	}
}

func TestBridgeAdminRequiresOwner(t *testing.T) {
	node, _, _ := newTestNode(t, nil)
	if err := node.AddBridge(stranger, bridge, big.NewInt(20_000), nil); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("expected owner gate, got %v", err)
	}
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(5))
	if err := node.SetBufferCap(stranger, bridge, big.NewInt(30_000)); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("expected owner gate, got %v", err)
	}
	if err := node.RemoveBridge(stranger, bridge); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("expected owner gate, got %v", err)
	}
}

func TestTwoStepOwnershipTransfer(t *testing.T) {
	node, _, _ := newTestNode(t, nil)
	successor := [20]byte{0x77}

	if err := node.TransferOwnership(stranger, successor); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("expected owner gate, got %v", err)
	}
	if err := node.TransferOwnership(owner, successor); err != nil {
		t.Fatalf("transfer ownership: %v", err)
	}
	// The incumbent stays in charge until the successor accepts.
	if err := node.AddBridge(successor, bridge, big.NewInt(20_000), nil); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("successor must not act before accepting, got %v", err)
	}
	if err := node.AcceptOwnership(stranger); !errors.Is(err, state.ErrNotPendingOwner) {
		t.Fatalf("expected pending owner gate, got %v", err)
	}
	if err := node.AcceptOwnership(successor); err != nil {
		t.Fatalf("accept ownership: %v", err)
	}
	if err := node.AddBridge(successor, bridge, big.NewInt(20_000), nil); err != nil {
		t.Fatalf("new owner add bridge: %v", err)
	}
	if err := node.AddBridge(owner, [20]byte{0x55}, big.NewInt(20_000), nil); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("old owner must lose control, got %v", err)
	}
}

func TestRoleAdministration(t *testing.T) {
	node, _, _ := newTestNode(t, nil)
	backend := [20]byte{0x42}
	if err := node.GrantRole(stranger, state.RoleBackend, backend); !errors.Is(err, state.ErrNotOwner) {
		t.Fatalf("expected owner gate, got %v", err)
	}
	if err := node.GrantRole(owner, state.RoleBackend, backend); err != nil {
		t.Fatalf("grant role: %v", err)
	}
	if !node.HasRole(state.RoleBackend, backend) {
		t.Fatal("expected role granted")
	}
	if err := node.RevokeRole(owner, state.RoleBackend, backend); err != nil {
		t.Fatalf("revoke role: %v", err)
	}
	if node.HasRole(state.RoleBackend, backend) {
		t.Fatal("expected role revoked")
	}
}

func TestBufferAccruesAcrossOperations(t *testing.T) {
	node, _, now := newTestNode(t, nil)
	registerBridge(t, node, big.NewInt(20_000), big.NewInt(10))

	if err := node.Mint(bridge, holder, big.NewInt(10_000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	// Buffer drained; another mint fails immediately.
	if err := node.Mint(bridge, holder, big.NewInt(1)); !errors.Is(err, limits.ErrRateLimitHit) {
		t.Fatalf("expected rate limit hit, got %v", err)
	}
	// After 500s at rate 10 the bridge can mint 5000 again.
	*now += 500
	if err := node.Mint(bridge, holder, big.NewInt(5_000)); err != nil {
		t.Fatalf("mint after accrual: %v", err)
	}
	balance, err := node.BalanceOf(holder)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(15_000)) != 0 {
		t.Fatalf("expected balance 15000, got %s", balance)
	}
}
