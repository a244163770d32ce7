package utils

import (
	"strings"

	"github.com/ttacon/libphonenumber"
)

// CountryCode is the default region for numbers written without a leading +.
var CountryCode = "YE"

// NormalizePhone validates a phone number and returns it in E.164.
// Blank input is allowed and returned as "".
func NormalizePhone(field, phoneNumber string) (string, error) {
	phoneNumber = strings.TrimSpace(phoneNumber)
	if phoneNumber == "" {
		return "", nil
	}
	p, err := libphonenumber.Parse(phoneNumber, CountryCode)
	if err != nil || !libphonenumber.IsValidNumber(p) {
		return "", NewFieldError(field, "phone", "invalid phone number")
	}
	return libphonenumber.Format(p, libphonenumber.E164), nil
}
