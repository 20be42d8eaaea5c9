package strategy

import (
	"strings"

	"github.com/ton-vote/verifier/internal/models"
)

const (
	OptionYes     = "yes"
	OptionNo      = "no"
	OptionAbstain = "abstain"
)

var voteComments = map[string]string{
	"y":       OptionYes,
	"yes":     OptionYes,
	"n":       OptionNo,
	"no":      OptionNo,
	"a":       OptionAbstain,
	"abstain": OptionAbstain,
}

// Vote is a decoded ballot.
type Vote struct {
	Voter  string
	Option string
	Lt     uint64
}

// ParseVote decodes the text comment of tx. ok is false for anything that is not a ballot.
func ParseVote(tx models.Transaction) (Vote, bool) {
	if tx.Source == "" {
		return Vote{}, false
	}
	option, ok := voteComments[strings.ToLower(strings.TrimSpace(string(tx.Payload)))]
	if !ok {
		return Vote{}, false
	}
	return Vote{Voter: tx.Source, Option: option, Lt: tx.Lt}, true
}

// LatestVotes returns one ballot per voter, the one with the highest logical time, among the
// transactions inside the voting window. Voters keep their first-seen order.
func LatestVotes(metadata models.ProposalMetadata, transactions []models.Transaction) []Vote {
	var order []string
	latest := map[string]Vote{}
	for _, tx := range transactions {
		if !metadata.InVotingWindow(tx.Utime) {
			continue
		}
		vote, ok := ParseVote(tx)
		if !ok {
			continue
		}
		prev, seen := latest[vote.Voter]
		if !seen {
			order = append(order, vote.Voter)
		}
		if !seen || vote.Lt > prev.Lt {
			latest[vote.Voter] = vote
		}
	}

	votes := make([]Vote, 0, len(order))
	for _, voter := range order {
		votes = append(votes, latest[voter])
	}
	return votes
}
