package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if err := VerifyPassword(hash, "correct horse battery"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := VerifyPassword(hash, "wrong"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestValidateUsername(t *testing.T) {
	for _, ok := range []string{"pak_rt", "Warga01", "abc"} {
		if err := ValidateUsername(ok); err != nil {
			t.Fatalf("%q should be valid: %v", ok, err)
		}
	}
	for _, bad := range []string{"ab", "has space", "weird!", "this_username_is_way_too_long_to_pass"} {
		if err := ValidateUsername(bad); err == nil {
			t.Fatalf("%q should be invalid", bad)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("short"); err == nil {
		t.Fatalf("expected error for short password")
	}
	if err := ValidatePassword("long enough password"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
