package infra

import "testing"

func TestExtractMarker(t *testing.T) {
	marker, body, err := ExtractMarker("\n--sql 0b1d7f0e-9f4c-4f1e-8d47-3c1f0f1f7a01\nselect 1\n")
	if err != nil {
		t.Fatalf("ExtractMarker: %v", err)
	}
	if marker != "0b1d7f0e-9f4c-4f1e-8d47-3c1f0f1f7a01" || body != "select 1" {
		t.Fatalf("got %q %q", marker, body)
	}

	for _, q := range []string{"", "select 1", "--sql not-a-uuid\nselect 1"} {
		if _, _, err := ExtractMarker(q); err == nil {
			t.Fatalf("expected error for %q", q)
		}
	}
}
