package pairing

import (
	"regexp"

	"github.com/itc-kingsavage/savage-scanner/internal/util"
)

// E.164-like: a leading + followed by 2 to 15 digits.
var phoneRE = regexp.MustCompile(`^\+[0-9]{2,15}$`)

// NormalizePhoneNumber NFKD-normalizes the input so full-width digits and
// similar unicode forms don't slip past validation.
func NormalizePhoneNumber(phone string) string {
	return util.Normalize(phone)
}

// ValidPhoneNumber reports whether phone passes E.164-like validation
// after normalization.
func ValidPhoneNumber(phone string) bool {
	return phoneRE.MatchString(NormalizePhoneNumber(phone))
}
