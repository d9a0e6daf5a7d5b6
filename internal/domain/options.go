package domain

import (
	"sort"
	"strings"
)

// OptionSet is a sorted, de-duplicated set of variation option ids. Two
// selections of the same options compare equal regardless of input order.
type OptionSet []string

func NewOptionSet(ids ...string) OptionSet {
	seen := make(map[string]struct{}, len(ids))
	out := make(OptionSet, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Key is the persisted equality key of the set.
func (s OptionSet) Key() string {
	return strings.Join(s, ",")
}

func (s OptionSet) Equal(other OptionSet) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

func (s OptionSet) Contains(id string) bool {
	i := sort.SearchStrings(s, id)
	return i < len(s) && s[i] == id
}

// Selection maps a variation type id to the option chosen for it.
type Selection map[string]string

func (s Selection) OptionSet() OptionSet {
	ids := make([]string, 0, len(s))
	for _, optionID := range s {
		ids = append(ids, optionID)
	}
	return NewOptionSet(ids...)
}
