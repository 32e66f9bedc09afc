package mfa

import (
	"crypto/rand"
	"strings"
)

// BackupCodeCount is the number of codes issued per set. A fresh set replaces
// the old one on every successful TOTP confirmation.
const BackupCodeCount = 10

const backupCodeLength = 10

// backupAlphabet is 32 characters, omitting 0/O and 1/I so codes survive being
// read aloud or written down.
const backupAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// GenerateBackupCodes returns BackupCodeCount fresh codes, 10 characters each,
// drawn from a 32-character alphabet. Callers store only HashOTP of each code
// and show the plaintext exactly once.
func GenerateBackupCodes() ([]string, error) {
	codes := make([]string, BackupCodeCount)
	buf := make([]byte, backupCodeLength)
	for i := range codes {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		b := make([]byte, backupCodeLength)
		for j, v := range buf {
			// 32 divides 256, so masking the low five bits is uniform.
			b[j] = backupAlphabet[v&31]
		}
		codes[i] = string(b)
	}
	return codes, nil
}

// NormalizeBackupCode uppercases and strips separators so user input matches
// the generated form regardless of how the code was transcribed.
func NormalizeBackupCode(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	return strings.NewReplacer("-", "", " ", "").Replace(code)
}
