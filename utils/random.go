package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/pocketbase/pocketbase/tools/security"
)

const recordIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewRecordID returns a 15 character id in the same alphabet as PocketBase
// record ids. It never contains '-', so it is safe inside payment references.
func NewRecordID() string {
	return security.RandomStringWithAlphabet(15, recordIDAlphabet)
}

// GenerateCode returns n random bytes hex encoded in upper case.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}
