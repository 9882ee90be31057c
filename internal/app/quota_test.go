package app

import (
	"errors"
	"testing"

	"docvault/pkg/domain"
)

func TestCheckStorageOverLimit(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")
	if err := mem.AddStorageUsed(owner.ID, 4<<20); err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	check, err := a.CheckStorage(owner.ID, 2<<20)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if check.Allowed {
		t.Fatalf("4MB used + 2MB incoming over a 5MB limit must not be allowed")
	}
	if check.WouldBeUsed != 6<<20 {
		t.Fatalf("wouldBeUsed = %d, want %d", check.WouldBeUsed, 6<<20)
	}
	if check.Used != 4<<20 || check.Limit != 5<<20 {
		t.Fatalf("used=%d limit=%d, want 4MB/5MB", check.Used, check.Limit)
	}
	if check.PlanName != "Free" {
		t.Fatalf("planName = %q", check.PlanName)
	}
}

func TestCheckStorageWithinLimit(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")

	check, err := a.CheckStorage(owner.ID, 1<<20)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.Allowed || check.WouldBeUsed != 1<<20 {
		t.Fatalf("fresh owner must have room: %+v", check)
	}
}

func TestCheckStorageUnlimitedPlan(t *testing.T) {
	a, mem, _ := newTestApp(t)
	if err := mem.SavePlan(domain.Plan{ID: "pro", Name: "Pro", StorageLimitBytes: 0}); err != nil {
		t.Fatalf("save plan: %v", err)
	}
	owner := seedOwner(t, mem, "Asha", "", "")
	owner.PlanID = "pro"
	if err := mem.SaveUser(owner); err != nil {
		t.Fatalf("save user: %v", err)
	}

	check, err := a.CheckStorage(owner.ID, 1<<40)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !check.Allowed {
		t.Fatalf("unlimited plan must always allow")
	}
	if check.Limit != 0 {
		t.Fatalf("limit = %d, want 0 sentinel", check.Limit)
	}
}

func TestCheckStorageInvalidSize(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")
	if _, err := a.CheckStorage(owner.ID, 0); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("zero size: got %v", err)
	}
	if _, err := a.CheckStorage(owner.ID, -5); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("negative size: got %v", err)
	}
}

func TestCheckStorageUnknownOwner(t *testing.T) {
	a, _, _ := newTestApp(t)
	if _, err := a.CheckStorage("missing", 100); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

// The advisory check and the commit are separate operations. Two uploads that
// both check before either commits can push the counter past the limit by one
// in-flight upload's size. That window is accepted behavior for this product,
// and this test pins it down so a future change is a conscious one.
func TestCheckThenCommitRaceIsAccepted(t *testing.T) {
	a, mem, _ := newTestApp(t)
	owner := seedOwner(t, mem, "Asha", "", "")
	if err := mem.AddStorageUsed(owner.ID, 2<<20); err != nil {
		t.Fatalf("seed usage: %v", err)
	}

	first, err := a.CheckStorage(owner.ID, 2<<20)
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	second, err := a.CheckStorage(owner.ID, 2<<20)
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !first.Allowed || !second.Allowed {
		t.Fatalf("both concurrent checks pass against the stale counter")
	}

	if err := a.commitStorage(owner.ID, 2<<20); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if err := a.commitStorage(owner.ID, 2<<20); err != nil {
		t.Fatalf("second commit: %v", err)
	}

	user, _, err := mem.GetUserByID(owner.ID)
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if user.StorageUsed <= 5<<20 {
		t.Fatalf("expected the counter to overshoot the 5MB limit, got %d", user.StorageUsed)
	}
}
