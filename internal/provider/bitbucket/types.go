package bitbucket

// Wire types for the subset of the Bitbucket Cloud 2.0 API the client
// reads. Paged collections share one envelope whose next link is an
// opaque absolute URL.

type pagedResponse[T any] struct {
	Size   int    `json:"size"`
	Page   int    `json:"page"`
	Next   string `json:"next"`
	Values []T    `json:"values"`
}

type apiLinks struct {
	HTML   *apiLink `json:"html"`
	Avatar *apiLink `json:"avatar"`
}

type apiLink struct {
	Href string `json:"href"`
}

func (l apiLinks) htmlHref() string {
	if l.HTML == nil {
		return ""
	}
	return l.HTML.Href
}

func (l apiLinks) avatarHref() string {
	if l.Avatar == nil {
		return ""
	}
	return l.Avatar.Href
}

type apiUser struct {
	DisplayName string   `json:"display_name"`
	UUID        string   `json:"uuid"`
	AccountID   string   `json:"account_id"`
	Nickname    string   `json:"nickname"`
	Links       apiLinks `json:"links"`
}

type apiRepository struct {
	UUID      string   `json:"uuid"`
	Name      string   `json:"name"`
	FullName  string   `json:"full_name"`
	IsPrivate bool     `json:"is_private"`
	Links     apiLinks `json:"links"`
}

const participantChangesRequested = "changes_requested"

type apiPullRequest struct {
	ID           int              `json:"id"`
	Title        string           `json:"title"`
	State        string           `json:"state"`
	Author       apiAccount       `json:"author"`
	Destination  apiDestination   `json:"destination"`
	UpdatedOn    string           `json:"updated_on"`
	CommentCount int              `json:"comment_count"`
	Reviewers    []apiAccount     `json:"reviewers"`
	Participants []apiParticipant `json:"participants"`
	Links        apiLinks         `json:"links"`
	Draft        bool             `json:"draft"`
}

type apiAccount struct {
	DisplayName string   `json:"display_name"`
	UUID        string   `json:"uuid"`
	Links       apiLinks `json:"links"`
}

type apiDestination struct {
	Repository apiRepoRef `json:"repository"`
}

type apiRepoRef struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
	UUID     string `json:"uuid"`
}

type apiParticipant struct {
	User     apiAccount `json:"user"`
	Approved bool       `json:"approved"`
	State    string     `json:"state"`
}
