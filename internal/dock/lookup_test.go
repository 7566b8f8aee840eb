package dock

import (
	"context"
	"errors"
	"testing"
)

func TestCreateRampStartsAtVersionOne(t *testing.T) {
	service, _, _, fx := newTestService(t)

	ramp, err := service.CreateRamp(context.Background(), fx.actor, RampInput{
		Code:      "R9",
		Direction: DirectionOutbound,
		Type:      RampTypeBuffer,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ramp.Version != 1 {
		t.Fatalf("expected version 1, got %d", ramp.Version)
	}
	if ramp.Type != RampTypeBuffer {
		t.Fatalf("expected buffer ramp, got %s", ramp.Type)
	}
}

func TestUpdateRampGuardsVersion(t *testing.T) {
	service, _, _, fx := newTestService(t)

	description := "gate side"
	updated, conflict, err := service.UpdateRamp(context.Background(), fx.actor, fx.rampID, RampPatch{
		Version:     1,
		Description: &description,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict != nil {
		t.Fatalf("expected acceptance, got conflict %+v", conflict)
	}
	if updated.Version != 2 || updated.Description != description {
		t.Fatalf("unexpected updated ramp: %+v", updated)
	}

	stale, conflict, err := service.UpdateRamp(context.Background(), fx.actor, fx.rampID, RampPatch{
		Version:     1,
		Description: &description,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stale != nil {
		t.Fatalf("expected no row on conflict")
	}
	if conflict == nil || conflict.CurrentVersion != 2 || conflict.AttemptedVersion != 1 {
		t.Fatalf("unexpected conflict: %+v", conflict)
	}
}

func TestUpdateRampRequiresVersion(t *testing.T) {
	service, _, _, fx := newTestService(t)

	code := "R2"
	_, _, err := service.UpdateRamp(context.Background(), fx.actor, fx.rampID, RampPatch{Code: &code})
	if !errors.Is(err, ErrVersionRequired) {
		t.Fatalf("expected ErrVersionRequired, got %v", err)
	}
}

func TestDeleteRampCascadesAssignments(t *testing.T) {
	service, db, notifier, fx := newTestService(t)

	detail, err := service.CreateAssignment(context.Background(), fx.actor, AssignmentInput{
		RampID:   fx.rampID,
		LoadID:   fx.loadID,
		StatusID: fx.statusID,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := service.DeleteRamp(context.Background(), fx.actor, fx.rampID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var remaining int64
	if err := db.Model(&Assignment{}).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count assignments: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected dependent assignments removed, %d remain", remaining)
	}

	if len(notifier.deleted) != 1 || notifier.deleted[0].ID != detail.ID {
		t.Fatalf("expected deleted event for cascaded assignment, got %+v", notifier.deleted)
	}

	if _, err := service.GetRamp(context.Background(), fx.rampID); !errors.Is(err, ErrRampNotFound) {
		t.Fatalf("expected ramp gone, got %v", err)
	}
}

func TestDeleteLoadCascadesAssignments(t *testing.T) {
	service, db, notifier, fx := newTestService(t)

	if _, err := service.CreateAssignment(context.Background(), fx.actor, AssignmentInput{
		RampID:   fx.rampID,
		LoadID:   fx.loadID,
		StatusID: fx.statusID,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := service.DeleteLoad(context.Background(), fx.actor, fx.loadID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var remaining int64
	if err := db.Model(&Assignment{}).Count(&remaining).Error; err != nil {
		t.Fatalf("failed to count assignments: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected dependent assignments removed, %d remain", remaining)
	}
	if len(notifier.deleted) != 1 {
		t.Fatalf("expected one deleted event, got %d", len(notifier.deleted))
	}
}

func TestDeleteStatusInUseIsRejected(t *testing.T) {
	service, _, _, fx := newTestService(t)

	if _, err := service.CreateAssignment(context.Background(), fx.actor, AssignmentInput{
		RampID:   fx.rampID,
		LoadID:   fx.loadID,
		StatusID: fx.statusID,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := service.DeleteStatus(context.Background(), fx.actor, fx.statusID)
	if !errors.Is(err, ErrStatusInUse) {
		t.Fatalf("expected ErrStatusInUse, got %v", err)
	}

	if _, err := service.GetStatus(context.Background(), fx.statusID); err != nil {
		t.Fatalf("status must survive a rejected delete: %v", err)
	}
}

func TestDeleteUnusedStatus(t *testing.T) {
	service, _, _, fx := newTestService(t)

	if err := service.DeleteStatus(context.Background(), fx.actor, fx.statusID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := service.GetStatus(context.Background(), fx.statusID); !errors.Is(err, ErrStatusNotFound) {
		t.Fatalf("expected status gone, got %v", err)
	}
}

func TestParseDirection(t *testing.T) {
	cases := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{input: "IB", want: DirectionInbound},
		{input: "OB", want: DirectionOutbound},
		{input: "ib", want: DirectionInbound},
		{input: " ob ", want: DirectionOutbound},
		{input: "", wantErr: true},
		{input: "SIDEWAYS", wantErr: true},
	}

	for _, tc := range cases {
		direction, err := ParseDirection(tc.input)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("expected error for %q", tc.input)
			}
			continue
		}
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", tc.input, err)
		}
		if direction != tc.want {
			t.Fatalf("expected %s for %q, got %s", tc.want, tc.input, direction)
		}
	}
}
