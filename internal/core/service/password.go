package service

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// passwordCost is the bcrypt work factor. Tests lower it to bcrypt.MinCost.
var passwordCost = bcrypt.DefaultCost

func hashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), passwordCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// verifyPassword compares in constant time with respect to the candidate.
func verifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// dummyHash absorbs a comparison for unknown usernames so both login
// failure paths cost one bcrypt evaluation.
var dummyHash = sync.OnceValue(func() string {
	h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), passwordCost)
	return string(h)
})
