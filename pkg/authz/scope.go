package authz

import "sort"

// Scope is the set of authorized-email ids an actor may assign. It is
// either unrestricted (superadmin, or an admin with no delegation rows)
// or restricted to an explicit id set, which may legitimately be empty.
type Scope struct {
	unrestricted bool
	ids          map[int64]struct{}
}

// AllScope returns the unrestricted scope.
func AllScope() Scope {
	return Scope{unrestricted: true}
}

// RestrictedScope returns a scope limited to the given ids. An empty ids
// slice produces a scope that allows assigning nothing — deliberately not
// the same thing as AllScope.
func RestrictedScope(ids []int64) Scope {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Scope{ids: set}
}

// Unrestricted reports whether the scope places no limit on assignments.
func (s Scope) Unrestricted() bool {
	return s.unrestricted
}

// Allows reports whether the given email id may be assigned under this scope.
func (s Scope) Allows(id int64) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.ids[id]
	return ok
}

// Filter returns the ids from the request that survive this scope,
// preserving request order. Under an unrestricted scope the input is
// returned as-is.
func (s Scope) Filter(ids []int64) []int64 {
	if s.unrestricted {
		return ids
	}
	filtered := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// Size returns the number of delegated ids; zero for the unrestricted scope.
func (s Scope) Size() int {
	return len(s.ids)
}

// IDs returns the delegated ids in ascending order, nil when unrestricted.
func (s Scope) IDs() []int64 {
	if s.unrestricted {
		return nil
	}
	ids := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
