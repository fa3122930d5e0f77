// Package classify assigns each pull request one canonical review-action
// state. Every provider client normalizes its raw signals into Signals and
// runs them through the same decision table, so an item classifies
// identically no matter which provider it came from.
package classify

import "github.com/spiffcs/reviewdeck/internal/model"

// Signals are the normalized inputs to the decision table.
type Signals struct {
	// IsDraft marks a draft / work-in-progress pull request.
	IsDraft bool

	// IsMerged marks a merged (or closed) pull request.
	IsMerged bool

	// IsAuthoredByMe is true when the current user authored the item.
	IsAuthoredByMe bool

	// IsAssignedToMe is true when the current user is a requested
	// reviewer or an assignee.
	IsAssignedToMe bool

	// HasActedByMe is true when the current user approved or requested
	// changes. Providers may compute this from cheap aggregate data only
	// (see the lazy reviewer-state fetch in the GitLab client); the
	// resulting blind spot is an accepted approximation.
	HasActedByMe bool

	// MergedWithinLookback is true when a merged item's last activity
	// falls inside the merge lookback window.
	MergedWithinLookback bool
}

// State applies the decision table. Rules are checked in order and the
// first match wins, so exactly one state is ever assigned.
func State(s Signals) model.State {
	if s.IsDraft {
		if s.IsAuthoredByMe {
			return model.StateAuthored
		}
		return model.StateTeamOther
	}

	if s.IsMerged {
		if s.IsAssignedToMe && !s.HasActedByMe && !s.IsAuthoredByMe && s.MergedWithinLookback {
			return model.StateMergedNeedsReview
		}
		return model.StateTeamOther
	}

	if s.IsAuthoredByMe {
		return model.StateAuthored
	}
	if s.HasActedByMe {
		return model.StateWaiting
	}
	if s.IsAssignedToMe {
		return model.StateNeedsReview
	}
	return model.StateTeamOther
}
