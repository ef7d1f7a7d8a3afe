package contacts

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// DefaultCountryCode is prepended to numbers written without a leading '+'.
const DefaultCountryCode = "91"

// ErrInvalidPhone is returned when a number cannot be normalised.
var ErrInvalidPhone = errors.New("contacts: invalid phone number")

// e164Reg matches '+' followed by 7 to 15 digits.
var e164Reg = regexp.MustCompile(`^\+[0-9]{7,15}$`)

var phoneSeparators = strings.NewReplacer("-", "", " ", "", "(", "", ")", "", ".", "")

// FormatPhone normalises raw into international format. Separators are
// removed; a number without '+' that already starts with countryCode gets a
// '+', anything else gets '+'+countryCode.
func FormatPhone(raw, countryCode string) (string, error) {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	countryCode = strings.TrimPrefix(countryCode, "+")

	phone := strings.TrimSpace(raw)
	// Numeric cells exported from spreadsheets can come out as "919876543210.0".
	phone = strings.TrimSuffix(phone, ".0")
	phone = phoneSeparators.Replace(phone)

	if !strings.HasPrefix(phone, "+") {
		if strings.HasPrefix(phone, countryCode) {
			phone = "+" + phone
		} else {
			phone = "+" + countryCode + phone
		}
	}

	if !e164Reg.MatchString(phone) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phone, nil
}

// Digits returns phone without the leading '+', the form used in chat URLs.
func Digits(phone string) string {
	return strings.TrimPrefix(phone, "+")
}
