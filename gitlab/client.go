package gitlab

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gitlab_nss_daemon/config"
	"gitlab_nss_daemon/logging"
)

// Key usage flag GitLab sets on keys valid for SSH authentication.
const usageAuthAndSigning = "auth_and_signing"

var clientLog = logging.NewLogger("gitlab")

// Client talks to the GitLab REST API with a bearer token. Requests are
// bounded by the HTTP client timeout; there is no per-call cancellation and
// no retrying.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(cfg config.GitLabConfig) *Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = config.DefaultTimeoutSeconds
	}
	clientLog.Info("GitLab client initialized for %s (timeout: %ds)", cfg.BaseURL, timeout)
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}
}

// get fetches baseURL+path and decodes the JSON body into out, mapping HTTP
// status codes onto the error taxonomy.
func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return NewError(CodeGenericError, "failed to build request for %s: %v", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "gitlabnss-daemon/1.0")

	clientLog.Debug("GET %s", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return NewError(CodeGenericError, "request to %s failed: %v", path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return NewError(CodeNotFound, "%s returned 404", path)
	case resp.StatusCode == http.StatusUnauthorized:
		return NewError(CodeAuthenticationError, "%s returned 401", path)
	case resp.StatusCode >= 500:
		return NewError(CodeServerError, "%s returned %d", path, resp.StatusCode)
	case resp.StatusCode >= 400:
		return NewError(CodeGenericError, "%s returned %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewError(CodeGenericError, "failed to read response from %s: %v", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return NewError(CodeResponseFormatError, "undecodable response from %s: %v", path, err)
	}
	return nil
}

// userRecord is the subset of a GitLab user payload the daemon consumes.
type userRecord struct {
	ID       UserID `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	State    string `json:"state"`
}

func (r userRecord) user() User {
	return User{ID: r.ID, Username: r.Username, Name: r.Name, State: r.State}
}

// UserByName resolves a username through the user search endpoint. Usernames
// are unique, so anything other than a single match is an error.
func (c *Client) UserByName(username string) (User, error) {
	var records []userRecord
	if err := c.get("/users?username="+url.QueryEscape(username), &records); err != nil {
		return User{}, err
	}
	switch len(records) {
	case 0:
		return User{}, NewError(CodeNotFound, "no user named %q", username)
	case 1:
		return records[0].user(), nil
	default:
		return User{}, NewError(CodeResponseFormatError, "%d users named %q", len(records), username)
	}
}

func (c *Client) UserByID(id UserID) (User, error) {
	var record userRecord
	if err := c.get(fmt.Sprintf("/users/%d", id), &record); err != nil {
		return User{}, err
	}
	return record.user(), nil
}

// AuthorizedKeys returns the user's SSH keys flagged for authentication use.
func (c *Client) AuthorizedKeys(id UserID) ([]string, error) {
	var records []struct {
		Key       string `json:"key"`
		UsageType string `json:"usage_type"`
	}
	if err := c.get(fmt.Sprintf("/users/%d/keys", id), &records); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(records))
	for _, record := range records {
		if record.UsageType != usageAuthAndSigning {
			continue
		}
		keys = append(keys, record.Key)
	}
	return keys, nil
}

// Memberships returns the groups the user belongs to, in the order the API
// reports them.
func (c *Client) Memberships(id UserID) ([]Group, error) {
	var records []struct {
		SourceID   GroupID `json:"source_id"`
		SourceName string  `json:"source_name"`
	}
	if err := c.get(fmt.Sprintf("/users/%d/memberships", id), &records); err != nil {
		return nil, err
	}

	groups := make([]Group, 0, len(records))
	for _, record := range records {
		groups = append(groups, Group{ID: record.SourceID, Name: record.SourceName})
	}
	return groups, nil
}

// GroupByName resolves a group name via the search endpoint. Search matches
// substrings, so only an exact name hit counts.
func (c *Client) GroupByName(groupname string) (Group, error) {
	var records []Group
	if err := c.get("/groups?search="+url.QueryEscape(groupname), &records); err != nil {
		return Group{}, err
	}
	for _, record := range records {
		if record.Name == groupname {
			return record, nil
		}
	}
	return Group{}, NewError(CodeNotFound, "no group named %q", groupname)
}

func (c *Client) GroupByID(id GroupID) (Group, error) {
	var record Group
	if err := c.get(fmt.Sprintf("/groups/%d", id), &record); err != nil {
		return Group{}, err
	}
	return record, nil
}
