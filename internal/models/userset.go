package models

import (
	"encoding/json"
	"sort"
)

// UserSet is a set of user IDs. The zero value is an empty, read-only set;
// use NewUserSet before calling Add.
type UserSet map[string]struct{}

func NewUserSet(ids ...string) UserSet {
	s := make(UserSet, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s UserSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add inserts id and reports whether it was absent.
func (s UserSet) Add(id string) bool {
	if id == "" || s.Has(id) {
		return false
	}
	s[id] = struct{}{}
	return true
}

// Remove deletes id and reports whether it was present.
func (s UserSet) Remove(id string) bool {
	if !s.Has(id) {
		return false
	}
	delete(s, id)
	return true
}

// Toggle flips membership of id and reports whether it is now a member.
func (s UserSet) Toggle(id string) bool {
	if s.Remove(id) {
		return false
	}
	return s.Add(id)
}

func (s UserSet) Len() int { return len(s) }

// Sorted returns the members in ascending order.
func (s UserSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s UserSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *UserSet) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewUserSet(ids...)
	return nil
}
