// Package domain contains core concepts of the direct-messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"sort"
	"strings"
)

// Identity is the resolved owner of a connection, issued by the identity verifier.
type Identity struct {
	UserID   string
	Username string
}

// OnlineSet is the derived set of identities currently holding at least one live connection.
type OnlineSet []Identity

// NewOnlineSet deduplicates identities by UserID and sorts them by username.
// A user connected twice is reported once.
func NewOnlineSet(identities []Identity) OnlineSet {
	seen := make(map[string]struct{}, len(identities))
	set := make(OnlineSet, 0, len(identities))
	for _, id := range identities {
		if _, ok := seen[id.UserID]; ok {
			continue
		}
		seen[id.UserID] = struct{}{}
		set = append(set, id)
	}
	sort.Slice(set, func(i, j int) bool {
		if c := strings.Compare(set[i].Username, set[j].Username); c != 0 {
			return c < 0
		}
		return set[i].UserID < set[j].UserID
	})
	return set
}

// Contains reports whether userID is online.
func (s OnlineSet) Contains(userID string) bool {
	for _, id := range s {
		if id.UserID == userID {
			return true
		}
	}
	return false
}
