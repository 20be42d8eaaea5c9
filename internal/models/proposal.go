package models

import (
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
)

// VotingPowerStrategy selects how a voter's ballot is weighted.
type VotingPowerStrategy int

const (
	TonBalance VotingPowerStrategy = iota
	JettonBalance
	NftCollection
)

func (s VotingPowerStrategy) String() string {
	switch s {
	case TonBalance:
		return "ton-balance"
	case JettonBalance:
		return "jetton-balance"
	case NftCollection:
		return "nft-collection"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// ProposalMetadata is the immutable description of a proposal. Times are unix seconds.
type ProposalMetadata struct {
	DaoAddress           string              `json:"daoAddress,omitempty"`
	Title                string              `json:"title,omitempty"`
	VotingPowerStrategy  VotingPowerStrategy `json:"votingPowerStrategy"`
	Jetton               string              `json:"jetton,omitempty"`
	Nft                  string              `json:"nft,omitempty"`
	ProposalStartTime    int64               `json:"proposalStartTime"`
	ProposalEndTime      int64               `json:"proposalEndTime"`
	ProposalSnapshotTime int64               `json:"proposalSnapshotTime"`
}

var ErrInvalidMetadata = errors.New("invalid proposal metadata")

// Validate checks the strategy-dependent addresses and the ordering of the proposal times.
func (m ProposalMetadata) Validate() error {
	switch m.VotingPowerStrategy {
	case TonBalance:
	case JettonBalance:
		if m.Jetton == "" {
			return fmt.Errorf("%w: jetton address required", ErrInvalidMetadata)
		}
		if err := ValidateAddress(m.Jetton); err != nil {
			return fmt.Errorf("%w: invalid jetton address: %v", ErrInvalidMetadata, err)
		}
	case NftCollection:
		if m.Nft == "" {
			return fmt.Errorf("%w: nft collection address required", ErrInvalidMetadata)
		}
		if err := ValidateAddress(m.Nft); err != nil {
			return fmt.Errorf("%w: invalid nft address: %v", ErrInvalidMetadata, err)
		}
	default:
		return fmt.Errorf("%w: unknown voting power strategy %d", ErrInvalidMetadata, int(m.VotingPowerStrategy))
	}

	if m.ProposalEndTime <= m.ProposalStartTime {
		return fmt.Errorf("%w: end time must be greater than start time", ErrInvalidMetadata)
	}
	if m.ProposalSnapshotTime >= m.ProposalStartTime {
		return fmt.Errorf("%w: snapshot time must be smaller than start time", ErrInvalidMetadata)
	}
	return nil
}

// InVotingWindow reports whether utime falls within [start, end].
func (m ProposalMetadata) InVotingWindow(utime int64) bool {
	return utime >= m.ProposalStartTime && utime <= m.ProposalEndTime
}

// ValidateAddress accepts both user-friendly and raw (workchain:hex) addresses.
func ValidateAddress(addr string) error {
	if _, err := address.ParseAddr(addr); err == nil {
		return nil
	}
	if _, err := address.ParseRawAddr(addr); err != nil {
		return fmt.Errorf("unrecognized address %q", addr)
	}
	return nil
}
