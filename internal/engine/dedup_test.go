package engine

import (
	"fmt"
	"testing"
	"time"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("/bapi/c2c/v2/order/list", 200, 512)
	b := Fingerprint("/bapi/c2c/v2/order/list", 200, 512)
	if a != b {
		t.Fatalf("same triple produced different digests: %s vs %s", a, b)
	}
	if len(a) != 40 {
		t.Fatalf("expected 40-char sha1 hex digest, got %d chars", len(a))
	}

	if Fingerprint("/bapi/c2c/v2/order/list", 200, 513) == a {
		t.Error("body length change did not change digest")
	}
	if Fingerprint("/bapi/c2c/v2/order/list", 500, 512) == a {
		t.Error("status change did not change digest")
	}
	if Fingerprint("/other", 200, 512) == a {
		t.Error("route change did not change digest")
	}
}

func TestDeduper_RejectsWithinWindow(t *testing.T) {
	d := NewDeduper(2*time.Second, 100)
	fp := Fingerprint("/route", 200, 64)

	if !d.Admit(fp) {
		t.Fatal("first sighting must be admitted")
	}
	for i := 0; i < 3; i++ {
		if d.Admit(fp) {
			t.Fatal("duplicate within window must be rejected")
		}
	}
}

func TestDeduper_AdmitsAfterWindowElapsed(t *testing.T) {
	now := time.Now()
	d := NewDeduper(2*time.Second, 100)
	d.now = func() time.Time { return now }

	fp := Fingerprint("/route", 200, 64)
	if !d.Admit(fp) {
		t.Fatal("first sighting must be admitted")
	}

	now = now.Add(2*time.Second + time.Millisecond)
	if !d.Admit(fp) {
		t.Fatal("sighting after window elapsed must be admitted again")
	}
}

func TestDeduper_CapacityEvictsOldest(t *testing.T) {
	d := NewDeduper(time.Hour, 3)

	first := Fingerprint("/r0", 200, 0)
	d.Admit(first)
	for i := 1; i <= 3; i++ {
		d.Admit(Fingerprint(fmt.Sprintf("/r%d", i), 200, 0))
	}

	// first was pushed out by capacity even though the window is huge.
	if !d.Admit(first) {
		t.Fatal("capacity eviction must drop the oldest entry")
	}
	if d.Len() != 3 {
		t.Fatalf("expected 3 live entries, got %d", d.Len())
	}
}

func TestDeduper_CleanupRunsOnRejectedCalls(t *testing.T) {
	now := time.Now()
	d := NewDeduper(time.Second, 100)
	d.now = func() time.Time { return now }

	old := Fingerprint("/old", 200, 1)
	d.Admit(old)

	now = now.Add(2 * time.Second)
	dup := Fingerprint("/dup", 200, 2)
	d.Admit(dup)
	d.Admit(dup) // rejected, but cleanup still ran above

	if d.Len() != 1 {
		t.Fatalf("expired entry not evicted, len=%d", d.Len())
	}
}
