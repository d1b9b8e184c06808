package pkg

import "golang.org/x/crypto/bcrypt"

// PasswordHashCost is the bcrypt cost used for operator passwords.
const PasswordHashCost = 12

func HashPasswordWithCost(password string, cost int) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	return BytesToString(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
