package crypto

import (
	"encoding/json"
)

// User is the plaintext of a users/{id} record.
type User struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// PlaceholderUser stands in for authors that are missing or unreadable.
var PlaceholderUser = User{Name: "[Unknown User]", Email: "[unknown@example.com]"}

func (c *Cipher) EncryptUser(u User) (string, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return "", err
	}
	return c.Encrypt(string(b))
}

// DecryptUser returns PlaceholderUser when the blob cannot be read.
func (c *Cipher) DecryptUser(blob string) User {
	plain := c.Decrypt(blob)
	if plain == DecryptionFailed {
		return PlaceholderUser
	}
	var u User
	if err := json.Unmarshal([]byte(plain), &u); err != nil || u.Email == "" {
		return PlaceholderUser
	}
	return u
}
