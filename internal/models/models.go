package models

import "time"

// Transaction represents an inbound transaction of a proposal contract.
type Transaction struct {
	Lt      uint64 `json:"lt"`
	Hash    string `json:"hash"`
	Utime   int64  `json:"utime"`
	Source  string `json:"source"`
	Payload []byte `json:"payload"`
}

// Snapshot is the cached verification state of a proposal: its metadata, the tally computed
// so far, and the logical time of the last transaction folded into that tally.
type Snapshot struct {
	Address   string           `json:"address"`
	Metadata  ProposalMetadata `json:"metadata"`
	Result    ProposalResult   `json:"proposalResult"`
	MaxLt     uint64           `json:"maxLt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}
