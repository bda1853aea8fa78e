// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
	"strings"
)

// Member names one sub-object of a dataset.
type Member string

const (
	RowsMeta     Member = "rows-meta"
	ColsMeta     Member = "cols-meta"
	MatrixMember Member = "matrix"
	Summary      Member = "summary"
	IndexListing Member = "index-listing"
)

// AllMembers lists every member in canonical order.
var AllMembers = []Member{RowsMeta, ColsMeta, MatrixMember, Summary, IndexListing}

// ParseMember validates a member name.
func ParseMember(name string) (Member, error) {
	for _, member := range AllMembers {
		if string(member) == name {
			return member, nil
		}
	}
	return "", fmt.Errorf("unknown dataset member %q", name)
}

// IsFrame reports whether the member is stored as a tabular frame.
func (m Member) IsFrame() bool {
	return m == RowsMeta || m == ColsMeta || m == MatrixMember
}

// MemberSet is a set of members.
type MemberSet map[Member]bool

// NewMemberSet returns a set holding members.
func NewMemberSet(members ...Member) MemberSet {
	set := make(MemberSet, len(members))
	for _, member := range members {
		set[member] = true
	}
	return set
}

// AllMemberSet returns a set holding every member.
func AllMemberSet() MemberSet {
	return NewMemberSet(AllMembers...)
}

// Has reports whether member is in the set.
func (s MemberSet) Has(member Member) bool {
	return s[member]
}

// HasAll reports whether every member of other is in s.
func (s MemberSet) HasAll(other MemberSet) bool {
	for member, present := range other {
		if present && !s[member] {
			return false
		}
	}
	return true
}

// Members returns the members of the set in canonical order.
func (s MemberSet) Members() []Member {
	members := make([]Member, 0, len(s))
	for _, member := range AllMembers {
		if s[member] {
			members = append(members, member)
		}
	}
	return members
}

// String returns the members joined with commas.
func (s MemberSet) String() string {
	names := make([]string, 0, len(s))
	for _, member := range s.Members() {
		names = append(names, string(member))
	}
	return "[" + strings.Join(names, ",") + "]"
}
