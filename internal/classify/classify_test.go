package classify

import (
	"testing"

	"github.com/spiffcs/reviewdeck/internal/model"
)

// expected mirrors the decision-table precedence independently of the
// implementation so the exhaustive sweep below has a second opinion.
func expected(s Signals) model.State {
	switch {
	case s.IsDraft && s.IsAuthoredByMe:
		return model.StateAuthored
	case s.IsDraft:
		return model.StateTeamOther
	case s.IsMerged:
		if s.IsAssignedToMe && !s.HasActedByMe && !s.IsAuthoredByMe && s.MergedWithinLookback {
			return model.StateMergedNeedsReview
		}
		return model.StateTeamOther
	case s.IsAuthoredByMe:
		return model.StateAuthored
	case s.HasActedByMe:
		return model.StateWaiting
	case s.IsAssignedToMe:
		return model.StateNeedsReview
	default:
		return model.StateTeamOther
	}
}

func TestStateExhaustive(t *testing.T) {
	// All 64 combinations of the six booleans.
	for mask := 0; mask < 64; mask++ {
		s := Signals{
			IsDraft:              mask&1 != 0,
			IsMerged:             mask&2 != 0,
			IsAuthoredByMe:       mask&4 != 0,
			IsAssignedToMe:       mask&8 != 0,
			HasActedByMe:         mask&16 != 0,
			MergedWithinLookback: mask&32 != 0,
		}

		got := State(s)
		want := expected(s)
		if got != want {
			t.Errorf("State(%+v) = %s, want %s", s, got, want)
		}

		// Exactly one state is ever assigned, and never the decode sentinel.
		if got == model.StateUnknown {
			t.Errorf("State(%+v) produced the unknown sentinel", s)
		}
	}
}

func TestStatePrecedence(t *testing.T) {
	tests := []struct {
		name    string
		signals Signals
		want    model.State
	}{
		{
			name:    "my draft wins over merged",
			signals: Signals{IsDraft: true, IsMerged: true, IsAuthoredByMe: true},
			want:    model.StateAuthored,
		},
		{
			name:    "teammate draft is low priority even when assigned",
			signals: Signals{IsDraft: true, IsAssignedToMe: true},
			want:    model.StateTeamOther,
		},
		{
			name:    "merged unacted assignment within lookback",
			signals: Signals{IsMerged: true, IsAssignedToMe: true, MergedWithinLookback: true},
			want:    model.StateMergedNeedsReview,
		},
		{
			name:    "merged outside lookback falls to team",
			signals: Signals{IsMerged: true, IsAssignedToMe: true},
			want:    model.StateTeamOther,
		},
		{
			name:    "merged but already acted",
			signals: Signals{IsMerged: true, IsAssignedToMe: true, HasActedByMe: true, MergedWithinLookback: true},
			want:    model.StateTeamOther,
		},
		{
			name:    "merged own PR never needs review",
			signals: Signals{IsMerged: true, IsAuthoredByMe: true, IsAssignedToMe: true, MergedWithinLookback: true},
			want:    model.StateTeamOther,
		},
		{
			name:    "open assigned without action",
			signals: Signals{IsAssignedToMe: true},
			want:    model.StateNeedsReview,
		},
		{
			name:    "open assigned after acting",
			signals: Signals{IsAssignedToMe: true, HasActedByMe: true},
			want:    model.StateWaiting,
		},
		{
			name:    "author beats acted",
			signals: Signals{IsAuthoredByMe: true, HasActedByMe: true},
			want:    model.StateAuthored,
		},
		{
			name:    "unrelated open PR",
			signals: Signals{},
			want:    model.StateTeamOther,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := State(tt.signals); got != tt.want {
				t.Errorf("State() = %s, want %s", got, tt.want)
			}
		})
	}
}
