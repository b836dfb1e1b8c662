package netid

import "testing"

func TestNetAddressRoundTrip(t *testing.T) {
	testCases := []string{
		"[::1]:8090",
		"127.0.0.1:9000",
		"[2001:db8::1]:443",
	}
	for _, s := range testCases {
		addr, err := ParseNetAddress(s)
		if err != nil {
			t.Fatalf("ParseNetAddress(%q) failed: %v", s, err)
		}
		if addr.String() != s {
			t.Fatalf("round trip mismatch: got %q want %q", addr.String(), s)
		}
		if addr.IsZero() {
			t.Fatalf("parsed address %q reported IsZero", s)
		}
	}
}

func TestNetAddressJSONRoundTrip(t *testing.T) {
	addr, err := ParseNetAddress("[::1]:8090")
	if err != nil {
		t.Fatalf("ParseNetAddress failed: %v", err)
	}
	body, err := addr.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}
	var got NetAddress
	if err := got.UnmarshalJSON(body); err != nil {
		t.Fatalf("UnmarshalJSON failed: %v", err)
	}
	if !got.Equal(addr) {
		t.Fatalf("JSON round trip mismatch: got %v want %v", got, addr)
	}
}

func TestNodeIdLessIsStrictOrdering(t *testing.T) {
	a := NewNodeId()
	b := NewNodeId()
	if a == b {
		t.Skip("collided generating two random NodeIds, vanishingly unlikely")
	}
	if a.Less(b) == b.Less(a) {
		t.Fatalf("Less must be asymmetric for distinct ids: a.Less(b)=%v b.Less(a)=%v", a.Less(b), b.Less(a))
	}
	if a.Less(a) {
		t.Fatalf("Less must be irreflexive")
	}
}

func TestMajorVersionMismatchDetection(t *testing.T) {
	v1 := ProtocolVersion
	v2 := ProtocolVersion | 1 // same major, different minor
	if MajorVersion(v1) != MajorVersion(v2) {
		t.Fatalf("minor version difference should not change major version")
	}
	v3 := ProtocolVersion + (1 << 16)
	if MajorVersion(v1) == MajorVersion(v3) {
		t.Fatalf("expected a major version bump to be detected")
	}
}
