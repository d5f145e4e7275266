// Package socket implements the daemon's RPC surface: the request/response
// envelopes and the resolution service behind them.
package socket

import (
	"encoding/json"
	"net"

	"gitlab_nss_daemon/cache"
	"gitlab_nss_daemon/config"
	"gitlab_nss_daemon/gitlab"
	"gitlab_nss_daemon/groupmap"
	"gitlab_nss_daemon/logging"

	"golang.org/x/sync/singleflight"
)

// Handler resolves RPC requests against the identity provider, fronted by
// the lookup caches. One Handler serves all connections; connections are
// handled concurrently, so cache access is synchronized and simultaneous
// misses on the same key share a single upstream fetch.
type Handler struct {
	provider     gitlab.IdentityProvider
	users        *cache.Cache[gitlab.User]
	groups       *cache.Cache[gitlab.Group]
	groupMap     groupmap.Table
	primaryGroup string
	flight       singleflight.Group
	logger       *logging.Logger
}

func NewHandler(cfg *config.Config, provider gitlab.IdentityProvider, groupMap groupmap.Table) *Handler {
	return &Handler{
		provider:     provider,
		users:        cache.New[gitlab.User](cfg.NSS.UserCacheSize, 0),
		groups:       cache.New[gitlab.Group](cfg.NSS.GroupCacheSize, 0),
		groupMap:     groupMap,
		primaryGroup: cfg.NSS.PrimaryGroup,
		logger:       logging.NewLogger("socket"),
	}
}

// HandleConnection decodes one request from conn, dispatches it and writes
// the reply.
func (h *Handler) HandleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := json.NewDecoder(conn)
	encoder := json.NewEncoder(conn)

	var req Request
	if err := decoder.Decode(&req); err != nil {
		h.logger.Error("Error decoding request: %v", err)
		return
	}

	h.logger.Trace("Received request: %+v", req)

	switch req.Op {
	case OpUserByID:
		h.handleUserByID(encoder, gitlab.UserID(req.ID))
	case OpUserByName:
		h.handleUserByName(encoder, req.Name)
	case OpSSHKeys:
		h.handleSSHKeys(encoder, gitlab.UserID(req.ID))
	case OpGroupByID:
		h.handleGroupByID(encoder, gitlab.GroupID(req.ID))
	case OpGroupByName:
		h.handleGroupByName(encoder, req.Name)
	default:
		h.logger.Warn("Unknown operation: %s", req.Op)
		encoder.Encode(UserResponse{Code: gitlab.CodeGenericError})
	}
}
