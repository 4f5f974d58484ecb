// Package secret resolves the database credential: plaintext files,
// age-encrypted files, and generated passwords.
package secret

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"

	"filippo.io/age"
)

// FromFile reads a credential from path. Files ending in ".age" are
// decrypted with the identities in identityFile; anything else is read as
// plaintext. A single trailing newline is stripped either way.
func FromFile(path, identityFile string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read credential file: %w", err)
	}
	if strings.HasSuffix(path, ".age") {
		data, err = decrypt(data, identityFile)
		if err != nil {
			return "", err
		}
	}
	return strings.TrimRight(string(data), "\n"), nil
}

func decrypt(ciphertext []byte, identityFile string) ([]byte, error) {
	if identityFile == "" {
		return nil, fmt.Errorf("credential file is age-encrypted but no identity file was given")
	}
	f, err := os.Open(identityFile)
	if err != nil {
		return nil, fmt.Errorf("open identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parse identity file: %w", err)
	}
	r, err := age.Decrypt(bytes.NewReader(ciphertext), identities...)
	if err != nil {
		return nil, fmt.Errorf("age decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read plaintext: %w", err)
	}
	return plaintext, nil
}

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generate returns a random password of length n drawn from a
// shell-and-config-safe alphabet.
func Generate(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}
