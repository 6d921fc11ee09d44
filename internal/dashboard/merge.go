package dashboard

import (
	"github.com/marinade-finance/psr-dashboard/internal/types"
)

// ProtectedEventStatus tells where a dashboard row comes from.
type ProtectedEventStatus string

const (
	// StatusDryrun marks settled events from epochs before payouts were enabled.
	StatusDryrun ProtectedEventStatus = "DRYRUN"
	// StatusEstimate marks events computed locally for epochs not settled yet.
	StatusEstimate ProtectedEventStatus = "ESTIMATE"
	// StatusFact marks events settled and paid on-chain.
	StatusFact ProtectedEventStatus = "FACT"
)

func (s ProtectedEventStatus) Valid() bool {
	return s == StatusDryrun || s == StatusEstimate || s == StatusFact
}

type ProtectedEventWithValidator struct {
	Status         ProtectedEventStatus `json:"status"`
	ProtectedEvent types.ProtectedEvent `json:"protected_event"`
	Validator      *types.Validator     `json:"validator"`
}

// LatestSettledEpoch returns the highest epoch of the settled events, or 0.
func LatestSettledEpoch(settled []types.ProtectedEvent) uint64 {
	var latest uint64
	for _, event := range settled {
		if event.Epoch > latest {
			latest = event.Epoch
		}
	}
	return latest
}

// MergeProtectedEvents lists every settled event followed by the estimates for
// epochs after the latest settled one. Estimates for already settled epochs are
// dropped because the on-chain record supersedes them.
func MergeProtectedEvents(
	validators []types.Validator,
	settled []types.ProtectedEvent,
	estimates []types.ProtectedEvent,
	lastDryrunEpoch uint64,
) []ProtectedEventWithValidator {
	validatorsByVoteAccount := make(map[string]*types.Validator, len(validators))
	for i := range validators {
		validatorsByVoteAccount[validators[i].VoteAccount] = &validators[i]
	}

	latestSettledEpoch := LatestSettledEpoch(settled)
	result := make([]ProtectedEventWithValidator, 0, len(settled)+len(estimates))

	for _, event := range settled {
		status := StatusDryrun
		if event.Epoch > lastDryrunEpoch {
			status = StatusFact
		}
		result = append(result, ProtectedEventWithValidator{
			Status:         status,
			ProtectedEvent: event,
			Validator:      validatorsByVoteAccount[event.VoteAccount],
		})
	}

	for _, event := range estimates {
		if event.Epoch <= latestSettledEpoch {
			continue
		}
		result = append(result, ProtectedEventWithValidator{
			Status:         StatusEstimate,
			ProtectedEvent: event,
			Validator:      validatorsByVoteAccount[event.VoteAccount],
		})
	}

	return result
}
