// Package pseudonym derives stable user aliases so raw account ids never reach storage.
package pseudonym

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Alias returns the keyed BLAKE2b-256 digest of userID as hex.
// The same salt and id always yield the same alias; an empty id yields "".
func Alias(salt, userID string) string {
	if userID == "" {
		return ""
	}
	key := []byte(salt)
	if len(key) > blake2b.Size {
		sum := blake2b.Sum256(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// only possible for keys longer than 64 bytes, handled above
		panic(err)
	}
	h.Write([]byte(userID))
	return hex.EncodeToString(h.Sum(nil))
}

// Aliaser binds a salt so callers need not carry it around
type Aliaser struct {
	salt string
}

// New creates an Aliaser for salt
func New(salt string) Aliaser {
	return Aliaser{salt: salt}
}

// Alias hashes userID with the bound salt
func (a Aliaser) Alias(userID string) string {
	return Alias(a.salt, userID)
}
