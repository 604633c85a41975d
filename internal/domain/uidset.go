package domain

import (
	"sort"
	"strings"
)

// UIDSet is a set of user ids. The zero value is an empty, read-only set;
// use With/Without to derive modified copies.
type UIDSet map[string]struct{}

func NewUIDSet(ids ...string) UIDSet {
	s := make(UIDSet, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		s[id] = struct{}{}
	}
	return s
}

func (s UIDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s UIDSet) Len() int { return len(s) }

// With returns a copy of s that contains id.
func (s UIDSet) With(id string) UIDSet {
	out := s.clone()
	out[id] = struct{}{}
	return out
}

// Without returns a copy of s that does not contain id.
func (s UIDSet) Without(id string) UIDSet {
	out := s.clone()
	delete(out, id)
	return out
}

func (s UIDSet) Equal(other UIDSet) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if !other.Has(id) {
			return false
		}
	}
	return true
}

// Sorted returns the members in ascending order so writes are deterministic.
func (s UIDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s UIDSet) clone() UIDSet {
	out := make(UIDSet, len(s)+1)
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// Relations is the typed view of one document's relationship fields.
type Relations struct {
	UID      string
	Friends  UIDSet
	Requests UIDSet
	Version  string
}

// Field returns the set stored under the given document field name.
func (r Relations) Field(name string) UIDSet {
	switch name {
	case FieldFriends:
		return r.Friends
	case FieldFriendRequests:
		return r.Requests
	default:
		return nil
	}
}

func (r Relations) View() RelationView {
	return RelationView{UID: r.UID, Friends: r.Friends, Requests: r.Requests}
}
