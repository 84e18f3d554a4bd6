package attendance

import (
	"testing"
	"time"
)

func TestDebouncer_SameStudentWithinCooldown(t *testing.T) {
	d := NewDebouncer(10 * time.Second)
	now := time.Now()

	if !d.ShouldAccept(1, now) {
		t.Fatal("first detection should be accepted")
	}
	d.RecordAccepted(1, now)

	if d.ShouldAccept(1, now.Add(2*time.Second)) {
		t.Error("second detection within cooldown should be suppressed")
	}
}

func TestDebouncer_SameStudentAfterCooldown(t *testing.T) {
	d := NewDebouncer(10 * time.Second)
	now := time.Now()

	d.RecordAccepted(1, now)

	if !d.ShouldAccept(1, now.Add(10*time.Second)) {
		t.Error("detection at exactly the cooldown boundary should be accepted")
	}
}

func TestDebouncer_DifferentStudentsIndependent(t *testing.T) {
	d := NewDebouncer(10 * time.Second)
	now := time.Now()

	d.RecordAccepted(1, now)

	if !d.ShouldAccept(2, now.Add(time.Second)) {
		t.Error("a different student must not be suppressed by another's cooldown")
	}
}

func TestDebouncer_ShouldAcceptDoesNotRecord(t *testing.T) {
	d := NewDebouncer(10 * time.Second)
	now := time.Now()

	// Checking twice without recording must not start a cooldown.
	if !d.ShouldAccept(1, now) || !d.ShouldAccept(1, now.Add(time.Second)) {
		t.Error("ShouldAccept must be side-effect free")
	}
}

func TestDebouncer_Reset(t *testing.T) {
	d := NewDebouncer(time.Hour)
	now := time.Now()

	d.RecordAccepted(1, now)
	d.Reset()

	if !d.ShouldAccept(1, now.Add(time.Second)) {
		t.Error("reset should clear cooldowns")
	}
}

func TestNewDebouncer_DefaultCooldown(t *testing.T) {
	d := NewDebouncer(0)
	now := time.Now()

	d.RecordAccepted(1, now)
	if d.ShouldAccept(1, now.Add(DefaultCooldown-time.Second)) {
		t.Error("expected default cooldown to apply")
	}
	if !d.ShouldAccept(1, now.Add(DefaultCooldown)) {
		t.Error("expected acceptance after default cooldown")
	}
}
