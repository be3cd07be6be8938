package core

import (
	"math/big"
	"sync"
	"time"

	"bridgeledger/core/events"
	"bridgeledger/core/state"
	"bridgeledger/native/common"
	"bridgeledger/native/limits"
	"bridgeledger/native/pause"
	"bridgeledger/native/token"
	"bridgeledger/storage"
)

// Node is the composition root for the rate-limited token ledger. Every
// operation runs under a single mutex so check-then-mutate sequences stay
// atomic, and stages its writes in an overlay that only commits when the whole
// operation succeeds. Events are buffered alongside and released after commit.
type Node struct {
	mu        sync.Mutex
	db        storage.Database
	emitter   events.Emitter
	clock     func() time.Time
	self      [20]byte
	maxSupply *big.Int
}

// NewNode constructs a node over the provided database. The self identity is
// the ledger's own address; maxSupply may be nil for an unbounded supply.
func NewNode(db storage.Database, self [20]byte, maxSupply *big.Int) *Node {
	n := &Node{db: db, emitter: events.NoopEmitter{}, clock: time.Now, self: self}
	if maxSupply != nil {
		n.maxSupply = new(big.Int).Set(maxSupply)
	}
	return n
}

// SetEmitter configures the event emitter receiving committed events. Passing
// nil resets the emitter to a no-op implementation.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if emitter == nil {
		n.emitter = events.NoopEmitter{}
		return
	}
	n.emitter = emitter
}

// SetClock overrides the time source, enabling deterministic unit tests. The
// clock must be monotonic non-decreasing for the replenishment math to stay
// sound; skew backwards is treated as zero elapsed time by the buffer policy.
func (n *Node) SetClock(clock func() time.Time) {
	if n == nil || clock == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clock = clock
}

// opContext bundles the per-operation module instances wired onto a shared
// overlay.
type opContext struct {
	st     *state.Manager
	limits *limits.Registry
	pauses *pause.Controller
	ledger *token.Ledger
}

func (n *Node) run(fn func(op *opContext) error) error {
	overlay := storage.NewOverlay(n.db)
	st := state.NewManager(overlay)
	buffer := events.NewBuffer()

	registry := limits.NewRegistry(st)
	registry.SetEmitter(buffer)
	registry.SetClock(n.clock)

	controller := pause.NewController(st)
	controller.SetEmitter(buffer)
	controller.SetClock(n.clock)

	ledger := token.NewLedger(st, n.self, n.maxSupply)
	ledger.SetEmitter(buffer)

	op := &opContext{st: st, limits: registry, pauses: controller, ledger: ledger}
	if err := fn(op); err != nil {
		return err
	}
	if err := overlay.Commit(); err != nil {
		return err
	}
	buffer.Flush(n.emitter)
	return nil
}

// Bootstrap installs the initial owner, pause duration, and backend role
// grants. It is a no-op for settings that are already established.
func (n *Node) Bootstrap(owner [20]byte, pauseDuration time.Duration, backends [][20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		existing, err := op.st.Owner()
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			if err := op.st.SetOwner(owner[:]); err != nil {
				return err
			}
		}
		if pauseDuration > 0 {
			if err := op.pauses.InitDuration(pauseDuration); err != nil {
				return err
			}
		}
		for _, backend := range backends {
			if err := op.st.SetRole(state.RoleBackend, backend[:]); err != nil {
				return err
			}
		}
		return nil
	})
}

// --- Token operations ---

// Mint credits the recipient after the calling bridge's buffer absorbs the
// amount. The bridge identity is the caller itself.
func (n *Node) Mint(caller, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		if err := op.limits.DepleteBuffer(caller, amount); err != nil {
			return err
		}
		return op.ledger.Mint(caller, to, amount)
	})
}

// Burn debits the holder and restores the calling bridge's buffer capacity.
func (n *Node) Burn(caller, from [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		if err := op.limits.ReplenishBuffer(caller, amount); err != nil {
			return err
		}
		return op.ledger.Burn(caller, from, amount)
	})
}

// Transfer moves balance from the caller to the recipient.
func (n *Node) Transfer(caller, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.ledger.Transfer(caller, to, amount)
	})
}

// TransferFrom moves balance on behalf of the owner, spending the caller's
// allowance.
func (n *Node) TransferFrom(caller, from, to [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.ledger.TransferFrom(caller, from, to, amount)
	})
}

// Approve sets the spender's allowance over the caller's balance.
func (n *Node) Approve(caller, spender [20]byte, amount *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.ledger.Approve(caller, spender, amount)
	})
}

// --- Bridge limit administration (owner only) ---

// AddBridge registers a new rate-limited bridge.
func (n *Node) AddBridge(caller, bridge [20]byte, bufferCap, rateLimitPerSecond *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := op.st.RequireOwner(caller[:]); err != nil {
			return err
		}
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.limits.AddBridge(bridge, bufferCap, rateLimitPerSecond)
	})
}

// RemoveBridge zeroes a bridge's limit entry.
func (n *Node) RemoveBridge(caller, bridge [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := op.st.RequireOwner(caller[:]); err != nil {
			return err
		}
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.limits.RemoveBridge(bridge)
	})
}

// SetBufferCap updates a bridge's buffer cap.
func (n *Node) SetBufferCap(caller, bridge [20]byte, newCap *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := op.st.RequireOwner(caller[:]); err != nil {
			return err
		}
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.limits.SetBufferCap(bridge, newCap)
	})
}

// SetRateLimitPerSecond updates a bridge's replenishment rate.
func (n *Node) SetRateLimitPerSecond(caller, bridge [20]byte, newRate *big.Int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := op.st.RequireOwner(caller[:]); err != nil {
			return err
		}
		if err := common.Guard(op.pauses); err != nil {
			return err
		}
		return op.limits.SetRateLimitPerSecond(bridge, newRate)
	})
}

// --- Pause administration ---

// Pause engages the pause; only the armed guardian may call it.
func (n *Node) Pause(caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		return op.pauses.Pause(caller)
	})
}

// Unpause lifts an active pause; the guardian role is consumed.
func (n *Node) Unpause(caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		return op.pauses.Unpause(caller)
	})
}

// GrantPauseGuardian arms a new one-shot guardian (owner only).
func (n *Node) GrantPauseGuardian(caller, guardian [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		return op.pauses.GrantGuardian(caller, guardian)
	})
}

// SetPauseDuration updates the pause window (owner only).
func (n *Node) SetPauseDuration(caller [20]byte, duration time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		return op.pauses.SetDuration(caller, duration)
	})
}

// --- Ownership and roles ---

// TransferOwnership nominates a successor owner.
func (n *Node) TransferOwnership(caller, successor [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		return op.st.TransferOwnership(caller[:], successor[:])
	})
}

// AcceptOwnership completes a pending ownership transfer.
func (n *Node) AcceptOwnership(caller [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		return op.st.AcceptOwnership(caller[:])
	})
}

// GrantRole assigns a role to an address (owner only).
func (n *Node) GrantRole(caller [20]byte, role string, addr [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := op.st.RequireOwner(caller[:]); err != nil {
			return err
		}
		return op.st.SetRole(role, addr[:])
	})
}

// RevokeRole removes a role from an address (owner only).
func (n *Node) RevokeRole(caller [20]byte, role string, addr [20]byte) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(func(op *opContext) error {
		if err := op.st.RequireOwner(caller[:]); err != nil {
			return err
		}
		return op.st.RevokeRole(role, addr[:])
	})
}

// --- Reads ---

func (n *Node) readCtx() *opContext {
	st := state.NewManager(n.db)
	registry := limits.NewRegistry(st)
	registry.SetClock(n.clock)
	controller := pause.NewController(st)
	controller.SetClock(n.clock)
	ledger := token.NewLedger(st, n.self, n.maxSupply)
	return &opContext{st: st, limits: registry, pauses: controller, ledger: ledger}
}

// Buffer returns the live accrued buffer for the bridge.
func (n *Node) Buffer(bridge [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().limits.Buffer(bridge)
}

// BridgeLimit returns the stored limit entry for the bridge.
func (n *Node) BridgeLimit(bridge [20]byte) (*limits.BridgeLimit, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().limits.Limit(bridge)
}

// BalanceOf returns the account's balance.
func (n *Node) BalanceOf(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().ledger.BalanceOf(addr)
}

// Allowance returns the spender's allowance over the owner's balance.
func (n *Node) Allowance(owner, spender [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().ledger.Allowance(owner, spender)
}

// TotalSupply returns the current total supply.
func (n *Node) TotalSupply() (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().ledger.TotalSupply()
}

// MaxSupply returns the configured supply ceiling, or nil when unbounded.
func (n *Node) MaxSupply() *big.Int {
	if n == nil || n.maxSupply == nil {
		return nil
	}
	return new(big.Int).Set(n.maxSupply)
}

// PauseState returns the pause state at the current clock reading.
func (n *Node) PauseState() (*pause.State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().pauses.State()
}

// Owner returns the current owner address, or nil when not bootstrapped.
func (n *Node) Owner() ([]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().st.Owner()
}

// HasRole reports whether the address holds the role.
func (n *Node) HasRole(role string, addr [20]byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.readCtx().st.HasRole(role, addr[:])
}
