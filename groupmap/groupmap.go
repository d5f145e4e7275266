// Package groupmap builds the static remote-to-host group identity table.
package groupmap

import (
	"os/user"
	"strconv"

	"gitlab_nss_daemon/gitlab"
	"gitlab_nss_daemon/logging"
)

var log = logging.NewLogger("groupmap")

// Table maps a GitLab group id to the gid of a host-local group. It is built
// once during startup and read-only afterwards, so concurrent reads need no
// synchronization.
type Table map[gitlab.GroupID]uint32

// HostGID reports the host gid a remote group translates to, if any.
func (t Table) HostGID(id gitlab.GroupID) (uint32, bool) {
	gid, ok := t[id]
	return gid, ok
}

// HostResolver resolves a host group name to its numeric gid. Production
// code passes SystemHostResolver; tests substitute a map lookup.
type HostResolver func(name string) (uint32, error)

// SystemHostResolver resolves a group name through the local system's group
// directory.
func SystemHostResolver(name string) (uint32, error) {
	grp, err := user.LookupGroup(name)
	if err != nil {
		return 0, err
	}
	gid, err := strconv.ParseUint(grp.Gid, 10, 32)
	if err != nil {
		return 0, err
	}
	return uint32(gid), nil
}

// Build resolves each configured (remote group name, host group name) pair
// through the identity provider and the host resolver. A pair whose remote
// or host side cannot be resolved is logged and dropped; Build never fails
// and never retries.
func Build(mapping map[string]string, provider gitlab.IdentityProvider, resolve HostResolver) Table {
	table := make(Table, len(mapping))
	for remoteName, hostName := range mapping {
		group, err := provider.GroupByName(remoteName)
		if err != nil {
			log.Warn("Dropping group mapping %s -> %s: remote lookup failed: %v", remoteName, hostName, err)
			continue
		}
		gid, err := resolve(hostName)
		if err != nil {
			log.Warn("Dropping group mapping %s -> %s: host group lookup failed: %v", remoteName, hostName, err)
			continue
		}
		table[group.ID] = gid
		log.Info("Mapped remote group %s (id %d) to host group %s (gid %d)", remoteName, group.ID, hostName, gid)
	}
	return table
}
