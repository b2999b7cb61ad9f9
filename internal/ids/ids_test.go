package ids

import "testing"

func TestNewEntityIDRequiresBothParts(t *testing.T) {
	if _, err := NewEntityID("", "r1"); err == nil {
		t.Fatal("expected error for empty zone")
	}
	if _, err := NewEntityID("demo", ""); err == nil {
		t.Fatal("expected error for empty local")
	}
	id, err := NewEntityID("demo", "r1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id.Zone() != "demo" || id.Local() != "r1" {
		t.Fatalf("got zone=%q local=%q", id.Zone(), id.Local())
	}
}

func TestParseEntityIDRejectsMissingSeparator(t *testing.T) {
	cases := []string{"", "demo", "demo:", ":r1"}
	for _, c := range cases {
		if _, err := ParseEntityID(c); err == nil {
			t.Errorf("expected error for %q", c)
		}
	}
	id, err := ParseEntityID("demo:r1")
	if err != nil || id.String() != "demo:r1" {
		t.Fatalf("got id=%v err=%v", id, err)
	}
}

func TestPackSessionIDRoundTrips(t *testing.T) {
	id := PackSessionID(42, 1_700_000_000, 7)
	if id.GatewayID() != 42 {
		t.Errorf("gateway id = %d, want 42", id.GatewayID())
	}
	if id.Seconds() != 1_700_000_000 {
		t.Errorf("seconds = %d, want 1700000000", id.Seconds())
	}
	if id.Sequence() != 7 {
		t.Errorf("sequence = %d, want 7", id.Sequence())
	}
}

func TestEntityIDHashIsStable(t *testing.T) {
	id, _ := NewEntityID("demo", "r1")
	if id.Hash() != id.Hash() {
		t.Fatal("hash must be stable across calls")
	}
	other, _ := NewEntityID("demo", "r2")
	if id.Hash() == other.Hash() {
		t.Fatal("different ids should almost certainly hash differently")
	}
}
