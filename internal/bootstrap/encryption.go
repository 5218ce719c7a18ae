package bootstrap

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"

	"github.com/tinz/tinz-api/internal/data/cryptoutil"
)

// CreateEncryptor creates an AES-GCM encryptor for pending-registration
// hashes from the provided key. A 64-char hex key is decoded directly; any
// other non-empty key is hashed to 32 bytes. An empty or invalid key falls
// back to a noop encryptor with a warning so development setups still run.
//
//nolint:ireturn // returning cryptoutil.Encryptor keeps the noop fallback transparent to callers.
func CreateEncryptor(key string, logger *slog.Logger) cryptoutil.Encryptor {
	if key == "" {
		if logger != nil {
			logger.Warn("pending hash encryption key is empty, using noop encryptor")
		}
		return cryptoutil.NoopEncryptor{}
	}

	enc, err := createAESGCMEncryptor(key)
	if err != nil {
		if logger != nil {
			logger.Warn("failed to create encryptor, using noop encryptor", "error", err)
		}
		return cryptoutil.NoopEncryptor{}
	}

	return enc
}

func createAESGCMEncryptor(key string) (*cryptoutil.AESGCMEncryptor, error) {
	if key == "" {
		return nil, errors.New("encryption key is required")
	}

	var keyBytes []byte
	if decoded, err := hex.DecodeString(key); err == nil && len(decoded) == 32 {
		keyBytes = decoded
	} else {
		hash := sha256.Sum256([]byte(key))
		keyBytes = hash[:]
	}

	return cryptoutil.NewAESGCMEncryptor(keyBytes)
}
