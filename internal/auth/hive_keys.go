package auth

import (
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// Hive public keys are the "STM" prefix followed by base58 of a 33-byte
// compressed secp256k1 key plus a 4-byte RIPEMD160 checksum.
const (
	hiveKeyPrefix      = "STM"
	hiveKeyPayloadLen  = 33
	hiveKeyChecksumLen = 4
)

// ValidatePublicKey checks that a string is a structurally valid Hive public
// key. Signature verification itself happens in the wallet-provider gateway
// (Keychain/HiveSigner); the API only sanity-checks the key it is handed.
func ValidatePublicKey(key string) error {
	if !strings.HasPrefix(key, hiveKeyPrefix) {
		return fmt.Errorf("missing %s prefix", hiveKeyPrefix)
	}

	raw, err := base58.Decode(strings.TrimPrefix(key, hiveKeyPrefix))
	if err != nil {
		return fmt.Errorf("invalid base58 payload: %w", err)
	}

	if len(raw) != hiveKeyPayloadLen+hiveKeyChecksumLen {
		return fmt.Errorf("unexpected key length %d", len(raw))
	}

	return nil
}

// ValidateAccountName enforces Hive account naming rules: 3-16 characters,
// lowercase alphanumerics, dots and dashes, starting with a letter.
func ValidateAccountName(name string) error {
	if len(name) < 3 || len(name) > 16 {
		return fmt.Errorf("account name must be 3-16 characters")
	}
	if name[0] < 'a' || name[0] > 'z' {
		return fmt.Errorf("account name must start with a letter")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '-':
		default:
			return fmt.Errorf("invalid character %q in account name", r)
		}
	}
	return nil
}
