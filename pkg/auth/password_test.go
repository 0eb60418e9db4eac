package auth

import "testing"

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Secret#1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if hash == "Secret#1" {
		t.Fatal("hash must not equal plaintext")
	}
	if !CheckPassword("Secret#1", hash) {
		t.Fatal("expected matching password to verify")
	}
	if CheckPassword("Secret#2", hash) {
		t.Fatal("expected wrong password to fail")
	}
}

func TestCheckPasswordRejectsMalformedHash(t *testing.T) {
	if CheckPassword("whatever", "not-a-bcrypt-hash") {
		t.Fatal("malformed stored hash must not verify")
	}
}

func TestValidatePassword(t *testing.T) {
	valid := []string{"Abc!12", "Passw0rd!", "UPPER#lower12345"}
	for _, p := range valid {
		if err := ValidatePassword(p); err != nil {
			t.Fatalf("expected %q to pass policy: %v", p, err)
		}
	}
	invalid := []string{
		"",
		"Ab!1",                // too short
		"Abcdefgh!Abcdefgh!x", // too long
		"abcdef!1",            // no uppercase
		"Abcdefg1",            // no special character
	}
	for _, p := range invalid {
		if err := ValidatePassword(p); err == nil {
			t.Fatalf("expected %q to fail policy", p)
		}
	}
}
