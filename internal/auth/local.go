package auth

import (
	"os"

	"golang.org/x/crypto/bcrypt"
)

// AuthenticateService checks the caller's credentials against the bcrypt
// hash configured in the environment. Hashes are produced with cmd/hashgen.
func AuthenticateService(name, secret string) bool {
	serviceName := os.Getenv("SERVICE_USER")
	serviceHash := os.Getenv("SERVICE_PASSWORD_HASH")

	if serviceName == "" || serviceHash == "" {
		return false
	}
	if name != serviceName {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(serviceHash), []byte(secret)) == nil
}
