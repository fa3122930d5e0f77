package gitlab

import "strings"

// Wire types for the subset of the GitLab v4 API the client reads.

type apiUser struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
}

type apiProject struct {
	ID                int    `json:"id"`
	Name              string `json:"name"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
}

type apiMergeRequest struct {
	ID                  int       `json:"id"`
	IID                 int       `json:"iid"`
	ProjectID           int       `json:"project_id"`
	Title               string    `json:"title"`
	State               string    `json:"state"`
	CreatedAt           string    `json:"created_at"`
	UpdatedAt           string    `json:"updated_at"`
	WebURL              string    `json:"web_url"`
	Author              apiUser   `json:"author"`
	Assignees           []apiUser `json:"assignees"`
	Reviewers           []apiUser `json:"reviewers"`
	UserNotesCount      int       `json:"user_notes_count"`
	MergeStatus         string    `json:"merge_status"`
	DetailedMergeStatus string    `json:"detailed_merge_status"`
	HasConflicts        bool      `json:"has_conflicts"`
	Draft               bool      `json:"draft"`
	WorkInProgress      bool      `json:"work_in_progress"`
}

// isDraft folds GitLab's three draft spellings together; older instances
// only set work_in_progress or the title prefix.
func (mr apiMergeRequest) isDraft() bool {
	if mr.Draft || mr.WorkInProgress {
		return true
	}
	title := strings.ToLower(mr.Title)
	return strings.HasPrefix(title, "draft:") || strings.HasPrefix(title, "wip:")
}

type apiApprovalState struct {
	ID                int           `json:"id"`
	IID               int           `json:"iid"`
	ProjectID         int           `json:"project_id"`
	ApprovalsRequired int           `json:"approvals_required"`
	ApprovalsLeft     int           `json:"approvals_left"`
	ApprovedBy        []apiApprover `json:"approved_by"`
}

type apiApprover struct {
	User apiUser `json:"user"`
}

type apiReviewerStatus struct {
	State string  `json:"state"`
	User  apiUser `json:"user"`
}
