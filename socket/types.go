package socket

import "gitlab_nss_daemon/gitlab"

// Operation names accepted on the wire.
const (
	OpUserByID    = "user_by_id"
	OpUserByName  = "user_by_name"
	OpSSHKeys     = "ssh_keys"
	OpGroupByID   = "group_by_id"
	OpGroupByName = "group_by_name"
)

// Request is an incoming RPC request. Each connection carries exactly one
// request/response exchange.
type Request struct {
	Op   string `json:"op"`
	Name string `json:"name,omitempty"`
	ID   uint32 `json:"id,omitempty"`
}

// Membership is one group of a user, as rendered in responses. A translated
// membership carries a host gid directly (IsLocal true, no name); a remote
// membership keeps its GitLab identity and the shim applies the gid offset.
type Membership struct {
	ID      uint32 `json:"id"`
	Name    string `json:"name"`
	IsLocal bool   `json:"is_local"`
}

// UserPayload is a resolved user as rendered for one response.
type UserPayload struct {
	ID       uint32       `json:"id"`
	Username string       `json:"username"`
	Name     string       `json:"name"`
	State    string       `json:"state"`
	Groups   []Membership `json:"groups"`
}

// GroupPayload is a resolved group.
type GroupPayload struct {
	ID   uint32 `json:"id"`
	Name string `json:"name"`
}

// UserResponse answers user_by_id and user_by_name. User is present only
// when Code is ok.
type UserResponse struct {
	Code gitlab.Code  `json:"code"`
	User *UserPayload `json:"user,omitempty"`
}

// GroupResponse answers group_by_id and group_by_name.
type GroupResponse struct {
	Code  gitlab.Code   `json:"code"`
	Group *GroupPayload `json:"group,omitempty"`
}

// KeyResponse answers ssh_keys with a newline-joined key list.
type KeyResponse struct {
	Code gitlab.Code `json:"code"`
	Keys string      `json:"keys,omitempty"`
}
