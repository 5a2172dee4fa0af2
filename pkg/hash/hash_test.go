package hash

import "testing"

func TestHashAndCheck(t *testing.T) {
	h, err := HashPassword("shingle-42")
	if err != nil {
		t.Fatal(err)
	}
	if h == "shingle-42" {
		t.Fatal("hash must not equal the plain password")
	}
	if !CheckPasswordHash("shingle-42", h) {
		t.Fatal("expected match")
	}
	if CheckPasswordHash("wrong", h) {
		t.Fatal("expected mismatch")
	}
}
