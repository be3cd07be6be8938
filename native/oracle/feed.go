package oracle

import (
	"errors"
	"fmt"
	"math/big"
	"time"
)

var (
	// ErrInvalidAnswer indicates the feed reported a non-positive price.
	ErrInvalidAnswer = errors.New("oracle: invalid answer")
	// ErrIncompleteRound indicates the round has not completed yet.
	ErrIncompleteRound = errors.New("oracle: round not complete")
	// ErrStaleRound indicates the answer is older than the heartbeat allows.
	ErrStaleRound = errors.New("oracle: stale round")
)

// RoundData mirrors the upstream feed's latest round payload.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       int64
	UpdatedAt       int64
	AnsweredInRound *big.Int
}

// RoundReader is the collaborator interface implemented by price feed
// adapters.
type RoundReader interface {
	LatestRoundData() (RoundData, error)
}

// Checker validates feed rounds against the configured heartbeat before any
// consumer is allowed to price against them.
type Checker struct {
	feed      RoundReader
	heartbeat time.Duration
	clock     func() time.Time
}

// NewChecker constructs a checker for the given feed. The heartbeat is the
// maximum tolerated age of an answer.
func NewChecker(feed RoundReader, heartbeat time.Duration) *Checker {
	return &Checker{feed: feed, heartbeat: heartbeat, clock: time.Now}
}

// SetClock overrides the time source, enabling deterministic unit tests.
func (c *Checker) SetClock(clock func() time.Time) {
	if c == nil || clock == nil {
		return
	}
	c.clock = clock
}

// LatestPrice returns the feed's current answer after validating it. Rounds
// with a non-positive answer, an unset update timestamp, or an age beyond the
// heartbeat are rejected.
func (c *Checker) LatestPrice() (*big.Int, error) {
	if c == nil || c.feed == nil {
		return nil, fmt.Errorf("oracle: checker not initialised")
	}
	round, err := c.feed.LatestRoundData()
	if err != nil {
		return nil, err
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAnswer, answerString(round.Answer))
	}
	if round.UpdatedAt == 0 {
		return nil, ErrIncompleteRound
	}
	now := c.clock().UTC().Unix()
	if c.heartbeat > 0 && now-round.UpdatedAt > int64(c.heartbeat/time.Second) {
		return nil, fmt.Errorf("%w: updated %ds ago", ErrStaleRound, now-round.UpdatedAt)
	}
	return new(big.Int).Set(round.Answer), nil
}

func answerString(answer *big.Int) string {
	if answer == nil {
		return "nil"
	}
	return answer.String()
}
