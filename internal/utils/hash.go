package utils

import "golang.org/x/crypto/bcrypt"

// PasswordHashCost is the bcrypt work factor used when no override is configured.
const PasswordHashCost = 10

// HashPassword returns a bcrypt hash of the provided password. A cost outside bcrypt's range falls back to PasswordHashCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = PasswordHashCost
	}
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return string(bytes), err
}

// CheckPassword compares a bcrypt hashed password with its possible plaintext equivalent.
func CheckPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}
