// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package session owns the per-session interview state: the slot
// record, strike counters, stage tracking, and the stores that persist
// all of it between turns.
package session

// Confirmation is the tri-state signing answer. The zero value means
// the question has not been answered yet.
type Confirmation string

const (
	ConfirmationUnset    Confirmation = ""
	ConfirmationAccepted Confirmation = "accepted"
	ConfirmationDeclined Confirmation = "declined"
)

// Identity is the optional name + ID pair collected at the signing
// stage. Fields merge independently.
type Identity struct {
	FullName string `json:"full_name,omitempty"`
	IDNumber string `json:"id_number,omitempty"`
}

// Complete reports whether both identity fields are present.
func (id Identity) Complete() bool {
	return id.FullName != "" && id.IDNumber != ""
}

// Slots holds the facts collected across the interview.
//
// Description:
//
//	Amount and Income are pointers because absence ("could not
//	extract") and the value 0 mean different things: income 0 is a
//	valid, meaningful answer that routes to the ineligible branch.
//	Confirmation and Identity must stay unset until the signing stage;
//	the analyzer only extracts them there.
type Slots struct {
	Amount       *int         `json:"amount,omitempty"`
	Purpose      string       `json:"purpose,omitempty"`
	Income       *int         `json:"income,omitempty"`
	Confirmation Confirmation `json:"confirmation,omitempty"`
	Identity     Identity     `json:"identity,omitempty"`
}

// Merge folds newly extracted slots into the receiver.
//
// Description:
//
//	Field by field, a present new value overwrites; an absent new value
//	never erases. Identity merges at the sub-field level, so a name
//	given in one turn and an ID number in the next accumulate.
//
// Thread Safety: Caller must hold the session's turn lock.
func (s *Slots) Merge(n Slots) {
	if n.Amount != nil {
		s.Amount = n.Amount
	}
	if n.Purpose != "" {
		s.Purpose = n.Purpose
	}
	if n.Income != nil {
		s.Income = n.Income
	}
	if n.Confirmation != ConfirmationUnset {
		s.Confirmation = n.Confirmation
	}
	if n.Identity.FullName != "" {
		s.Identity.FullName = n.Identity.FullName
	}
	if n.Identity.IDNumber != "" {
		s.Identity.IDNumber = n.Identity.IDNumber
	}
}

func (s Slots) HasAmount() bool  { return s.Amount != nil }
func (s Slots) HasPurpose() bool { return s.Purpose != "" }
func (s Slots) HasIncome() bool  { return s.Income != nil }

// IntPtr is a small helper for building slot values.
func IntPtr(v int) *int { return &v }
