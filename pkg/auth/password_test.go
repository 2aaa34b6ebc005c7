package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Sup3r$ecret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "Sup3r$ecret" {
		t.Fatalf("hash must not equal the plaintext")
	}
	if !CheckPassword("Sup3r$ecret", hash) {
		t.Fatalf("expected password check to pass")
	}
	if CheckPassword("wrong-password", hash) {
		t.Fatalf("expected password check to fail")
	}
}

func TestCheckPasswordRejectsMalformedHash(t *testing.T) {
	if CheckPassword("anything", "not-a-bcrypt-hash") {
		t.Fatalf("malformed hash must never validate")
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("Valid@Password1"); err != nil {
		t.Fatalf("expected valid password, got: %v", err)
	}
	if err := ValidatePassword("Sh0rt!"); err == nil {
		t.Fatalf("expected failure for short password")
	}
	if err := ValidatePassword("nouppercase!1"); err == nil {
		t.Fatalf("expected failure for missing uppercase")
	}
	if err := ValidatePassword("NoSpecials1234"); err == nil {
		t.Fatalf("expected failure for missing special character")
	}
}
