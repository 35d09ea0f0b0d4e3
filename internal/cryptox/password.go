package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// generatedPasswordBytes gives 144 bits of entropy, 24 characters once encoded.
const generatedPasswordBytes = 18

// GeneratePassword returns a random URL-safe password. The vault never keeps
// a copy; whoever asked for it is responsible for handing it on.
func GeneratePassword() (string, error) {
	b := make([]byte, generatedPasswordBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
