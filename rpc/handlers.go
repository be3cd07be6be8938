package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"bridgeledger/config"
	"bridgeledger/native/common"
)

func decodeBody(r *http.Request, out interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseAmountField(raw, field string) (*big.Int, error) {
	amount, err := common.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", field, err)
	}
	return amount, nil
}

func parseAddressField(raw, field string) ([20]byte, error) {
	addr, err := config.ParseAddress(raw)
	if err != nil {
		return [20]byte{}, fmt.Errorf("invalid %s: %w", field, err)
	}
	return addr, nil
}

func addrParam(r *http.Request, name string) ([20]byte, error) {
	return parseAddressField(chi.URLParam(r, name), name)
}

// --- Token handlers ---

type mintRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req mintRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddressField(req.To, "to")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmountField(req.Amount, "amount")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.Mint(caller, to, amount); err != nil {
		s.metrics.RecordMint(false)
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordMint(true)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "minted"})
}

type burnRequest struct {
	From   string `json:"from"`
	Amount string `json:"amount"`
}

func (s *Server) handleBurn(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req burnRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	from := caller
	if req.From != "" {
		parsed, err := parseAddressField(req.From, "from")
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		from = parsed
	}
	amount, err := parseAmountField(req.Amount, "amount")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.Burn(caller, from, amount); err != nil {
		s.metrics.RecordBurn(false)
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordBurn(true)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "burned"})
}

type transferRequest struct {
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req transferRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddressField(req.To, "to")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmountField(req.Amount, "amount")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.Transfer(caller, to, amount); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordTransfer()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type transferFromRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

func (s *Server) handleTransferFrom(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req transferFromRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	from, err := parseAddressField(req.From, "from")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := parseAddressField(req.To, "to")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmountField(req.Amount, "amount")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.TransferFrom(caller, from, to, amount); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordTransfer()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

type approveRequest struct {
	Spender string `json:"spender"`
	Amount  string `json:"amount"`
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req approveRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := parseAddressField(req.Spender, "spender")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	amount, err := parseAmountField(req.Amount, "amount")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.Approve(caller, spender, amount); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "approved"})
}

// --- Bridge admin handlers ---

type addBridgeRequest struct {
	Bridge             string `json:"bridge"`
	BufferCap          string `json:"bufferCap"`
	RateLimitPerSecond string `json:"rateLimitPerSecond"`
}

func (s *Server) handleAddBridge(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req addBridgeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	bridge, err := parseAddressField(req.Bridge, "bridge")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	bufferCap, err := parseAmountField(req.BufferCap, "bufferCap")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	rateLimit, err := parseAmountField(req.RateLimitPerSecond, "rateLimitPerSecond")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.AddBridge(caller, bridge, bufferCap, rateLimit); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"status": "added"})
}

func (s *Server) handleRemoveBridge(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	bridge, err := addrParam(r, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.RemoveBridge(caller, bridge); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type setLimitRequest struct {
	Value string `json:"value"`
}

func (s *Server) handleSetBufferCap(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	bridge, err := addrParam(r, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req setLimitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	value, err := parseAmountField(req.Value, "value")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.SetBufferCap(caller, bridge, value); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleSetRateLimit(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	bridge, err := addrParam(r, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	var req setLimitRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	value, err := parseAmountField(req.Value, "value")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.SetRateLimitPerSecond(caller, bridge, value); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// --- Pause handlers ---

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	if err := s.node.Pause(caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordPauseTransition("engaged")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

func (s *Server) handleUnpause(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	if err := s.node.Unpause(caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordPauseTransition("lifted")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "unpaused"})
}

type grantGuardianRequest struct {
	Guardian string `json:"guardian"`
}

func (s *Server) handleGrantGuardian(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req grantGuardianRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	guardian, err := parseAddressField(req.Guardian, "guardian")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.GrantPauseGuardian(caller, guardian); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.metrics.RecordPauseTransition("guardian_granted")
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

type setDurationRequest struct {
	Duration string `json:"duration"`
}

func (s *Server) handleSetPauseDuration(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req setDurationRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	duration, err := time.ParseDuration(req.Duration)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid duration: %w", err))
		return
	}
	if err := s.node.SetPauseDuration(caller, duration); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// --- Ownership and role handlers ---

type ownershipRequest struct {
	Successor string `json:"successor"`
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req ownershipRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	successor, err := parseAddressField(req.Successor, "successor")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.TransferOwnership(caller, successor); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "pending"})
}

func (s *Server) handleAcceptOwnership(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	if err := s.node.AcceptOwnership(caller); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

type roleRequest struct {
	Role    string `json:"role"`
	Address string `json:"address"`
}

func (s *Server) handleGrantRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAddressField(req.Address, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.GrantRole(caller, req.Role, addr); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "granted"})
}

func (s *Server) handleRevokeRole(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(r)
	if !ok {
		s.writeError(w, http.StatusUnauthorized, errors.New("caller identity missing"))
		return
	}
	var req roleRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	addr, err := parseAddressField(req.Address, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.node.RevokeRole(caller, req.Role, addr); err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// --- Read handlers ---

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.node.TotalSupply()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := map[string]string{"totalSupply": supply.String()}
	if max := s.node.MaxSupply(); max != nil {
		resp["maxSupply"] = max.String()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	addr, err := addrParam(r, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	balance, err := s.node.BalanceOf(addr)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"balance": balance.String()})
}

func (s *Server) handleAllowance(w http.ResponseWriter, r *http.Request) {
	owner, err := addrParam(r, "owner")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	spender, err := addrParam(r, "spender")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	allowance, err := s.node.Allowance(owner, spender)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"allowance": allowance.String()})
}

type bridgeLimitResponse struct {
	Bridge             string `json:"bridge"`
	BufferCap          string `json:"bufferCap"`
	RateLimitPerSecond string `json:"rateLimitPerSecond"`
	BufferStored       string `json:"bufferStored"`
	LastUpdated        int64  `json:"lastUpdated"`
}

func (s *Server) handleBridgeLimit(w http.ResponseWriter, r *http.Request) {
	bridge, err := addrParam(r, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	limit, ok, err := s.node.BridgeLimit(bridge)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if !ok {
		s.writeError(w, http.StatusNotFound, errors.New("bridge not registered"))
		return
	}
	s.writeJSON(w, http.StatusOK, bridgeLimitResponse{
		Bridge:             fmt.Sprintf("0x%x", bridge),
		BufferCap:          limit.BufferCap.String(),
		RateLimitPerSecond: limit.RateLimitPerSecond.String(),
		BufferStored:       limit.BufferStored.String(),
		LastUpdated:        limit.LastUpdated,
	})
}

func (s *Server) handleBridgeBuffer(w http.ResponseWriter, r *http.Request) {
	bridge, err := addrParam(r, "address")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	buffer, err := s.node.Buffer(bridge)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"buffer": buffer.String()})
}

type pauseStateResponse struct {
	Paused    bool   `json:"paused"`
	StartTime int64  `json:"startTime"`
	Duration  string `json:"duration"`
	ExpiresAt int64  `json:"expiresAt"`
	Guardian  string `json:"guardian,omitempty"`
}

func (s *Server) handlePauseState(w http.ResponseWriter, r *http.Request) {
	st, err := s.node.PauseState()
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := pauseStateResponse{
		Paused:    st.Paused,
		StartTime: st.StartTime,
		Duration:  st.Duration.String(),
		ExpiresAt: st.ExpiresAt,
	}
	if st.HasGuard {
		resp.Guardian = fmt.Sprintf("0x%x", st.Guardian)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, errors.New("invalid limit"))
			return
		}
		limit = parsed
	}
	var entries []FeedEntry
	if s.feed != nil {
		entries = s.feed.Recent(limit)
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": entries})
}
