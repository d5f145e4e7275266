package socket

import (
	"encoding/json"
	"fmt"
	"strings"

	"gitlab_nss_daemon/gitlab"

	"golang.org/x/crypto/ssh"
)

// Cache keys are unique per (lookup kind, argument); users and groups live
// in separate caches so id spaces cannot collide.
func idKey(id uint32) string {
	return fmt.Sprintf("byID:%d", id)
}

func nameKey(name string) string {
	return fmt.Sprintf("byName:%s", name)
}

// lookupUser serves a user from the cache or performs the combined
// user-plus-memberships fetch. The combined fetch is atomic for caching: a
// membership failure fails the lookup and nothing is stored. On success the
// user is stored under both its id key and its name key before the caller
// renders a response. Simultaneous misses on the same key share one fetch.
func (h *Handler) lookupUser(key string, fetch func() (gitlab.User, error)) (gitlab.User, error) {
	if user, ok := h.users.Get(key); ok {
		return user, nil
	}

	v, err, _ := h.flight.Do("user:"+key, func() (interface{}, error) {
		user, err := fetch()
		if err != nil {
			return gitlab.User{}, err
		}
		groups, err := h.provider.Memberships(user.ID)
		if err != nil {
			return gitlab.User{}, err
		}
		user.Groups = groups

		h.users.Put(idKey(uint32(user.ID)), user)
		h.users.Put(nameKey(user.Username), user)
		return user, nil
	})
	if err != nil {
		return gitlab.User{}, err
	}
	return v.(gitlab.User), nil
}

// lookupGroup mirrors lookupUser for groups, including the dual-key store.
func (h *Handler) lookupGroup(key string, fetch func() (gitlab.Group, error)) (gitlab.Group, error) {
	if group, ok := h.groups.Get(key); ok {
		return group, nil
	}

	v, err, _ := h.flight.Do("group:"+key, func() (interface{}, error) {
		group, err := fetch()
		if err != nil {
			return gitlab.Group{}, err
		}
		h.groups.Put(idKey(uint32(group.ID)), group)
		h.groups.Put(nameKey(group.Name), group)
		return group, nil
	})
	if err != nil {
		return gitlab.Group{}, err
	}
	return v.(gitlab.Group), nil
}

// renderUser shapes a user for the wire. The membership list is copied, the
// configured primary group is swapped to the front (a single positional
// swap, not a sort), and each membership is run through the group identity
// table. The cached value is never modified and never stores translations.
func (h *Handler) renderUser(user gitlab.User) *UserPayload {
	memberships := make([]gitlab.Group, len(user.Groups))
	copy(memberships, user.Groups)

	if h.primaryGroup != "" {
		for i, g := range memberships {
			if g.Name == h.primaryGroup {
				memberships[0], memberships[i] = memberships[i], memberships[0]
				break
			}
		}
	}

	out := &UserPayload{
		ID:       uint32(user.ID),
		Username: user.Username,
		Name:     user.Name,
		State:    user.State,
		Groups:   make([]Membership, 0, len(memberships)),
	}
	for _, g := range memberships {
		if gid, ok := h.groupMap.HostGID(g.ID); ok {
			out.Groups = append(out.Groups, Membership{ID: gid, IsLocal: true})
			continue
		}
		out.Groups = append(out.Groups, Membership{ID: uint32(g.ID), Name: g.Name})
	}
	return out
}

func (h *Handler) handleUserByID(encoder *json.Encoder, id gitlab.UserID) {
	h.logger.Trace("user_by_id request for %d", id)

	user, err := h.lookupUser(idKey(uint32(id)), func() (gitlab.User, error) {
		return h.provider.UserByID(id)
	})
	if err != nil {
		h.logger.Debug("User %d not resolved: %v", id, err)
		encoder.Encode(UserResponse{Code: gitlab.CodeOf(err)})
		return
	}

	h.logger.Info("Resolved user %s (id %d)", user.Username, user.ID)
	encoder.Encode(UserResponse{Code: gitlab.CodeOK, User: h.renderUser(user)})
}

func (h *Handler) handleUserByName(encoder *json.Encoder, name string) {
	h.logger.Trace("user_by_name request for %s", name)

	user, err := h.lookupUser(nameKey(name), func() (gitlab.User, error) {
		return h.provider.UserByName(name)
	})
	if err != nil {
		h.logger.Debug("User %s not resolved: %v", name, err)
		encoder.Encode(UserResponse{Code: gitlab.CodeOf(err)})
		return
	}

	h.logger.Info("Resolved user %s (id %d)", user.Username, user.ID)
	encoder.Encode(UserResponse{Code: gitlab.CodeOK, User: h.renderUser(user)})
}

// handleSSHKeys fetches authorized keys directly; keys change too often to
// cache. Keys that do not parse as authorized_keys entries are dropped so
// one bad key cannot poison the list handed to sshd.
func (h *Handler) handleSSHKeys(encoder *json.Encoder, id gitlab.UserID) {
	h.logger.Trace("ssh_keys request for %d", id)

	keys, err := h.provider.AuthorizedKeys(id)
	if err != nil {
		h.logger.Debug("Keys for user %d not resolved: %v", id, err)
		encoder.Encode(KeyResponse{Code: gitlab.CodeOf(err)})
		return
	}

	valid := make([]string, 0, len(keys))
	for _, key := range keys {
		if _, _, _, _, err := ssh.ParseAuthorizedKey([]byte(key)); err != nil {
			h.logger.Warn("Dropping unparseable authorized key for user %d: %v", id, err)
			continue
		}
		valid = append(valid, key)
	}

	h.logger.Info("Returning %d authorized keys for user %d", len(valid), id)
	encoder.Encode(KeyResponse{Code: gitlab.CodeOK, Keys: strings.Join(valid, "\n")})
}

func (h *Handler) handleGroupByID(encoder *json.Encoder, id gitlab.GroupID) {
	h.logger.Trace("group_by_id request for %d", id)

	group, err := h.lookupGroup(idKey(uint32(id)), func() (gitlab.Group, error) {
		return h.provider.GroupByID(id)
	})
	if err != nil {
		h.logger.Debug("Group %d not resolved: %v", id, err)
		encoder.Encode(GroupResponse{Code: gitlab.CodeOf(err)})
		return
	}

	h.logger.Info("Resolved group %s (id %d)", group.Name, group.ID)
	encoder.Encode(GroupResponse{Code: gitlab.CodeOK, Group: &GroupPayload{ID: uint32(group.ID), Name: group.Name}})
}

func (h *Handler) handleGroupByName(encoder *json.Encoder, name string) {
	h.logger.Trace("group_by_name request for %s", name)

	group, err := h.lookupGroup(nameKey(name), func() (gitlab.Group, error) {
		return h.provider.GroupByName(name)
	})
	if err != nil {
		h.logger.Debug("Group %s not resolved: %v", name, err)
		encoder.Encode(GroupResponse{Code: gitlab.CodeOf(err)})
		return
	}

	h.logger.Info("Resolved group %s (id %d)", group.Name, group.ID)
	encoder.Encode(GroupResponse{Code: gitlab.CodeOK, Group: &GroupPayload{ID: uint32(group.ID), Name: group.Name}})
}
