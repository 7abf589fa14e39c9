package metadata

import "testing"

func TestComputeUniqueIDDeterministic(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	a, err := ComputeUniqueID(payload, 8, 8, 8, 4, 1, 1)
	if err != nil {
		t.Fatalf("ComputeUniqueID: %v", err)
	}
	b, err := ComputeUniqueID(payload, 8, 8, 8, 4, 1, 1)
	if err != nil {
		t.Fatalf("ComputeUniqueID: %v", err)
	}
	if a != b {
		t.Fatalf("expected deterministic output for identical inputs, got %x vs %x", a, b)
	}
}

func TestComputeUniqueIDSensitiveToDims(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	a, _ := ComputeUniqueID(payload, 8, 8, 8, 4, 1, 1)
	b, _ := ComputeUniqueID(payload, 16, 8, 8, 4, 1, 1)
	if a == b {
		t.Fatalf("expected different UniqueID when width differs")
	}
}

func TestComputeUniqueIDSensitiveToPayload(t *testing.T) {
	a, _ := ComputeUniqueID([]byte{1, 2, 3, 4}, 8, 8, 8, 4, 1, 1)
	b, _ := ComputeUniqueID([]byte{1, 2, 3, 5}, 8, 8, 8, 4, 1, 1)
	if a == b {
		t.Fatalf("expected different UniqueID for different first-brick payload")
	}
}
