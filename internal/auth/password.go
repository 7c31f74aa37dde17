// ABOUTME: Password hashing and comparison using bcrypt
// ABOUTME: Wraps golang.org/x/crypto/bcrypt with the default cost

package auth

import "golang.org/x/crypto/bcrypt"

// HashPassword generates a bcrypt hash from a plain text password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword reports whether the plain text password matches the stored hash
func ComparePassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
