// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package dataset

import (
	"fmt"
)

// Record maps members of one dataset to their materialized values:
// *Frame for rows-meta and cols-meta, *Matrix for matrix, and
// map[string]any for summary and index-listing.
type Record map[Member]any

// Frame returns a frame member.
func (r Record) Frame(member Member) (*Frame, error) {
	value, ok := r[member]
	if !ok {
		return nil, fmt.Errorf("record has no %s member", member)
	}
	frame, ok := value.(*Frame)
	if !ok {
		return nil, fmt.Errorf("record member %s is %T, want *dataset.Frame", member, value)
	}
	return frame, nil
}

// Matrix returns the matrix member.
func (r Record) Matrix() (*Matrix, error) {
	value, ok := r[MatrixMember]
	if !ok {
		return nil, fmt.Errorf("record has no %s member", MatrixMember)
	}
	matrix, ok := value.(*Matrix)
	if !ok {
		return nil, fmt.Errorf("record member %s is %T, want *dataset.Matrix", MatrixMember, value)
	}
	return matrix, nil
}

// Value returns a structured-value member.
func (r Record) Value(member Member) (map[string]any, error) {
	value, ok := r[member]
	if !ok {
		return nil, fmt.Errorf("record has no %s member", member)
	}
	mapping, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record member %s is %T, want map[string]any", member, value)
	}
	return mapping, nil
}

// Members returns the set of members present in the record.
func (r Record) Members() MemberSet {
	set := make(MemberSet, len(r))
	for member := range r {
		set[member] = true
	}
	return set
}

// Only returns a record holding just the members of r that are in
// set. Values are shared, not copied.
func (r Record) Only(set MemberSet) Record {
	subset := make(Record, len(set))
	for member, value := range r {
		if set.Has(member) {
			subset[member] = value
		}
	}
	return subset
}
