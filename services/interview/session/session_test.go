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

import (
	"context"
	"sync"
	"testing"
)

// =============================================================================
// Slot Merge Tests
// =============================================================================

func TestSlots_Merge_NewValueOverwrites(t *testing.T) {
	existing := Slots{Amount: IntPtr(5000), Purpose: "רכב"}
	existing.Merge(Slots{Amount: IntPtr(10000)})

	if *existing.Amount != 10000 {
		t.Errorf("amount = %d, want 10000", *existing.Amount)
	}
	if existing.Purpose != "רכב" {
		t.Errorf("purpose erased by merge: %q", existing.Purpose)
	}
}

func TestSlots_Merge_NilNeverErases(t *testing.T) {
	existing := Slots{
		Amount:       IntPtr(10000),
		Purpose:      "שיפוץ",
		Income:       IntPtr(0),
		Confirmation: ConfirmationAccepted,
	}
	existing.Merge(Slots{})

	if existing.Amount == nil || *existing.Amount != 10000 {
		t.Error("amount erased by empty merge")
	}
	if existing.Income == nil || *existing.Income != 0 {
		t.Error("income 0 erased by empty merge")
	}
	if existing.Confirmation != ConfirmationAccepted {
		t.Error("confirmation erased by empty merge")
	}
}

func TestSlots_Merge_IdentitySubFields(t *testing.T) {
	existing := Slots{Identity: Identity{FullName: "דוד כהן"}}
	existing.Merge(Slots{Identity: Identity{IDNumber: "012345678"}})

	if existing.Identity.FullName != "דוד כהן" {
		t.Errorf("name lost in sub-field merge: %q", existing.Identity.FullName)
	}
	if existing.Identity.IDNumber != "012345678" {
		t.Errorf("id not merged: %q", existing.Identity.IDNumber)
	}
	if !existing.Identity.Complete() {
		t.Error("identity should be complete after both sub-fields merged")
	}
}

// =============================================================================
// Farthest State Tests
// =============================================================================

func TestFarthestState(t *testing.T) {
	tests := []struct {
		name  string
		slots Slots
		want  Stage
	}{
		{"empty", Slots{}, StageAskAmount},
		{"amount only", Slots{Amount: IntPtr(10000)}, StageAskPurpose},
		{"amount and purpose", Slots{Amount: IntPtr(10000), Purpose: "שיפוץ"}, StageCheckIncome},
		{"all financials", Slots{Amount: IntPtr(10000), Purpose: "שיפוץ", Income: IntPtr(15000)}, StageSignConfirm},
		{"income zero still reaches signing order", Slots{Amount: IntPtr(10000), Purpose: "שיפוץ", Income: IntPtr(0)}, StageSignConfirm},
		{"declined confirmation wins", Slots{Confirmation: ConfirmationDeclined}, StageGoodbye},
		{"accepted and complete identity", Slots{
			Amount: IntPtr(10000), Purpose: "שיפוץ", Income: IntPtr(15000),
			Confirmation: ConfirmationAccepted,
			Identity:     Identity{FullName: "דוד כהן", IDNumber: "012345678"},
		}, StageGoodbye},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FarthestState(tt.slots); got != tt.want {
				t.Errorf("FarthestState = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// State Tests
// =============================================================================

func TestState_ResetClearsEverything(t *testing.T) {
	st := NewState("s1")
	st.Stage = StageTerminate
	st.Slots.Amount = IntPtr(10000)
	st.Strikes.Rude = 2
	st.Greeted = true
	st.GoodbyePrompted = true
	st.RetryCount = 3

	st.Reset()

	if st.Stage != StageStart {
		t.Errorf("stage after reset = %q, want start", st.Stage)
	}
	if st.Slots.HasAmount() || st.Strikes.Rude != 0 || st.RetryCount != 0 {
		t.Error("slots/strikes/retries survived reset")
	}
	if st.GoodbyePrompted || st.RestartOffered || st.IneligiblePrompted {
		t.Error("prompt flags survived reset")
	}
	if st.SessionID != "s1" {
		t.Errorf("session id changed on reset: %q", st.SessionID)
	}
}

func TestState_DuplicateTurnDetection(t *testing.T) {
	st := NewState("s1")
	st.Stage = StageAskAmount
	st.RecordTurn("אלף שקל", StageAskAmount)

	if !st.IsDuplicateTurn("אלף  שקל") {
		t.Error("whitespace-insensitive duplicate not detected")
	}
	if st.IsDuplicateTurn("אלפיים שקל") {
		t.Error("different text flagged as duplicate")
	}

	st.Stage = StageAskPurpose
	if st.IsDuplicateTurn("אלף שקל") {
		t.Error("same text in a different stage flagged as duplicate")
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestMemoryStore_RoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}

	st := NewState("s1")
	st.Stage = StageCheckIncome
	st.Slots.Income = IntPtr(0)
	st.Strikes.RefuseInfo = 1

	if err := store.Put(ctx, "s1", st); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the original must not affect the stored copy.
	st.Strikes.RefuseInfo = 99

	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != StageCheckIncome || got.Strikes.RefuseInfo != 1 {
		t.Errorf("stored state mutated: stage=%q refuse=%d", got.Stage, got.Strikes.RefuseInfo)
	}
	if got.Slots.Income == nil || *got.Slots.Income != 0 {
		t.Error("income 0 did not round-trip")
	}

	if err := store.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "s1"); err != ErrSessionNotFound {
		t.Error("session survived delete")
	}
}

func TestBadgerStore_RoundTrip(t *testing.T) {
	store, err := OpenBadgerStore(t.TempDir(), 0, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	st := NewState("s1")
	st.Stage = StageSignConfirm
	st.Slots = Slots{
		Amount:       IntPtr(10000),
		Purpose:      "שיפוץ",
		Income:       IntPtr(15000),
		Confirmation: ConfirmationAccepted,
		Identity:     Identity{FullName: "דוד כהן", IDNumber: "012345678"},
	}

	if err := store.Put(ctx, "s1", st); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "s1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stage != StageSignConfirm || got.Slots.Identity.IDNumber != "012345678" {
		t.Errorf("round-trip mismatch: %+v", got)
	}
	if store.WasWarm("s1") {
		t.Error("session created after open must not be warm")
	}
}

// =============================================================================
// Locker Tests
// =============================================================================

func TestLocker_SerializesSameSession(t *testing.T) {
	locker := NewLocker()
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("s1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50 (lost update)", counter)
	}
}
