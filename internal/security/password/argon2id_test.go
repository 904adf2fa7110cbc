package password

import "testing"

// Params chicos para que el test no queme memoria.
var testParams = Params{Memory: 8 * 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func TestHashVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	phc, err := Hash(testParams, "correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash err: %v", err)
	}
	if !Verify("correct horse battery staple", phc) {
		t.Fatalf("Verify rejected correct password")
	}
	if Verify("wrong password", phc) {
		t.Fatalf("Verify accepted wrong password")
	}
}

func TestHash_EmptyPassword(t *testing.T) {
	t.Parallel()
	if _, err := Hash(testParams, ""); err == nil {
		t.Fatalf("expected error for empty password")
	}
}

func TestVerify_MalformedPHC(t *testing.T) {
	t.Parallel()
	for _, phc := range []string{
		"",
		"not-a-phc",
		"$argon2id$v=19$m=8192,t=1,p=1$only-one-segment",
		"$bcrypt$v=19$m=8192,t=1,p=1$c2FsdA$ZGs",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdA$ZGs",
	} {
		if Verify("x", phc) {
			t.Fatalf("Verify accepted malformed phc %q", phc)
		}
	}
}
