package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// CIDPattern matches a UUID v4 in its canonical textual form: version
// nibble must be 4 and the variant nibble one of 8, 9, a, b. The contest
// identifier is the sync partition key, so anything else is rejected
// before it can reach storage.
var CIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

// ValidateCID checks that cid is a well-formed UUID v4.
func ValidateCID(cid string) error {
	if cid == "" {
		return fmt.Errorf("contest identifier cannot be empty")
	}

	if !CIDPattern.MatchString(strings.ToLower(cid)) {
		return fmt.Errorf("contest identifier must be a UUID v4")
	}

	return nil
}

// IsValidCID is the boolean form of ValidateCID.
func IsValidCID(cid string) bool {
	return ValidateCID(cid) == nil
}
