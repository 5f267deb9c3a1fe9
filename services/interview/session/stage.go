// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package session

// Stage is a named step of the bank interview.
type Stage string

const (
	StageStart       Stage = "start"
	StageAskAmount   Stage = "ask_amount"
	StageAskPurpose  Stage = "ask_purpose"
	StageCheckIncome Stage = "check_income"
	StageIneligible  Stage = "ineligible_financial"
	StageSignConfirm Stage = "sign_confirm"
	StageGoodbye     Stage = "goodbye"
	StageTerminate   Stage = "terminate"
)

// Valid reports whether the stage is one of the known interview stages.
func (st Stage) Valid() bool {
	switch st {
	case StageStart, StageAskAmount, StageAskPurpose, StageCheckIncome,
		StageIneligible, StageSignConfirm, StageGoodbye, StageTerminate:
		return true
	}
	return false
}

// Terminal reports whether the stage locks the session against further
// progress.
func (st Stage) Terminal() bool {
	return st == StageTerminate
}

// FarthestState computes the most advanced stage reachable given the
// currently known slots.
//
// Description:
//
//	Walks the fixed requirement order amount -> purpose -> income ->
//	confirmation+identity and returns the earliest unmet one. A user
//	who volunteers several facts in one utterance skips straight to
//	the first stage whose requirement is still open. One branch: an
//	explicitly declined confirmation routes to goodbye regardless of
//	the other slots.
//
// Inputs:
//
//	slots - The merged session slots.
//
// Outputs:
//
//	Stage - The farthest reachable stage. Never terminate.
//
// Thread Safety: Pure function.
func FarthestState(slots Slots) Stage {
	if slots.Confirmation == ConfirmationDeclined {
		return StageGoodbye
	}
	if !slots.HasAmount() {
		return StageAskAmount
	}
	if !slots.HasPurpose() {
		return StageAskPurpose
	}
	if !slots.HasIncome() {
		return StageCheckIncome
	}
	if slots.Confirmation == ConfirmationAccepted && slots.Identity.Complete() {
		return StageGoodbye
	}
	return StageSignConfirm
}
