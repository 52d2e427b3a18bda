package types

import "time"

// PositionStatus is the per-position outcome of a monitor cycle.
type PositionStatus string

const (
	StatusInRange     PositionStatus = "IN_RANGE"
	StatusWaiting     PositionStatus = "WAITING"     // Out of range, decision rejected
	StatusRecommended PositionStatus = "RECOMMENDED" // Accepted, auto-rebalance disabled
	StatusRebalanced  PositionStatus = "REBALANCED"
	StatusFailed      PositionStatus = "FAILED" // Invalid snapshot or execution error
)

// PositionResult records what a cycle did with one position.
type PositionResult struct {
	Snapshot  PositionSnapshot   `json:"snapshot"`
	Decision  *RebalanceDecision `json:"decision,omitempty"` // nil for in-range positions
	Status    PositionStatus     `json:"status"`
	Execution *ExecutionResult   `json:"execution,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// CycleSummary aggregates one monitor cycle.
type CycleSummary struct {
	SummaryID           int64            `json:"summary_id,omitempty"` // Assigned by the cycle store
	CycleID             string           `json:"cycle_id"`
	CycleNumber         int              `json:"cycle_number"`
	WalletAddress       string           `json:"wallet_address"`
	StartedAt           time.Time        `json:"started_at"`
	Duration            time.Duration    `json:"duration"`
	TotalPositions      int              `json:"total_positions"` // Snapshots that passed validation
	OutOfRange          int              `json:"out_of_range"`
	TotalValueUSD       float64          `json:"total_value_usd"`
	TotalPendingFeesUSD float64          `json:"total_pending_fees_usd"`
	Evaluated           int              `json:"evaluated"`
	Recommended         int              `json:"recommended"`
	Executed            int              `json:"executed"`
	Failed              int              `json:"failed"`
	CompoundEligible    bool             `json:"compound_eligible"`
	FetchError          string           `json:"fetch_error,omitempty"`
	Results             []PositionResult `json:"results,omitempty"`
}

// InRange returns the number of positions that were inside their range.
func (c CycleSummary) InRange() int {
	return c.TotalPositions - c.OutOfRange
}
