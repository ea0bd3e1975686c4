package auth

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if hash == "secret1" {
		t.Fatal("HashPassword() returned the plaintext")
	}

	if err := VerifyPassword("secret1", hash); err != nil {
		t.Errorf("VerifyPassword() with correct password failed: %v", err)
	}
	if err := VerifyPassword("wrong-password", hash); err == nil {
		t.Error("VerifyPassword() with wrong password returned nil")
	}
}

func TestVerifyPasswordGarbageHash(t *testing.T) {
	if err := VerifyPassword("secret1", "not-a-bcrypt-hash"); err == nil {
		t.Error("VerifyPassword() with malformed hash returned nil")
	}
}

func TestHashPasswordUniqueSalts(t *testing.T) {
	a, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	b, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() failed: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}
