package membership

import "sort"

// GroupOf returns every member sharing m's groupId, m included, ordered by
// id. A member without a groupId is a group of one.
func GroupOf(members []Member, m Member) []Member {
	if m.GroupID == "" {
		return []Member{m}
	}
	out := []Member{}
	self := false
	for _, other := range members {
		if other.GroupID != m.GroupID {
			continue
		}
		if other.ID == m.ID {
			self = true
		}
		out = append(out, other)
	}
	if !self {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
