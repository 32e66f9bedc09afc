package mfa

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// totpPeriod is the RFC 6238 time step in seconds.
const totpPeriod = 30

// totpSkew is the clock-skew tolerance in steps: a code from the previous or
// next step is accepted, anything further is not.
const totpSkew = 1

// NewTOTPKey generates a fresh TOTP key for the account and returns the base32
// secret together with the otpauth:// provisioning URL (for QR or manual entry).
func NewTOTPKey(issuer, accountName string) (secret, provisioningURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      totpPeriod,
		SecretSize:  20,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP reports whether code is valid for secret at time t, accepting
// the current step and one step either side. Comparison inside the library is
// constant-time per candidate step.
func ValidateTOTP(code, secret string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// TOTPCodeAt computes the code for secret at time t. Test helper and dev
// tooling only; verification always goes through ValidateTOTP.
func TOTPCodeAt(secret string, t time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, t.UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
}
