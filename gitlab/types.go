// Package gitlab models the upstream identity provider and implements its
// REST client.
package gitlab

// UserID and GroupID are GitLab-assigned numeric identities. The NSS shim
// shifts them into a host-reserved range; the daemon never applies offsets.
type (
	UserID  uint32
	GroupID uint32
)

// User is a GitLab account plus its group memberships. Groups is populated
// by a separate memberships call.
type User struct {
	ID       UserID  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	State    string  `json:"state"`
	Groups   []Group `json:"groups,omitempty"`
}

// Group is a GitLab group.
type Group struct {
	ID   GroupID `json:"id"`
	Name string  `json:"name"`
}

// IdentityProvider is the upstream the resolution service fetches from on a
// cache miss. *Client implements it; tests substitute fakes.
type IdentityProvider interface {
	UserByName(username string) (User, error)
	UserByID(id UserID) (User, error)
	AuthorizedKeys(id UserID) ([]string, error)
	Memberships(id UserID) ([]Group, error)
	GroupByName(groupname string) (Group, error)
	GroupByID(id GroupID) (Group, error)
}
