package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// 7-digit NTN with optional check digit, or 13-digit CNIC with or without dashes
	ntnCNICRegex = regexp.MustCompile(`^(\d{7}(-\d)?|\d{13}|\d{5}-\d{7}-\d)$`)

	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f]`)
)

// IsNTNCNIC reports whether s is a well-formed NTN or CNIC
func IsNTNCNIC(s string) bool {
	return ntnCNICRegex.MatchString(s)
}

// ValidateNTNCNIC validates a seller or buyer tax identifier
func ValidateNTNCNIC(s string) error {
	if !IsNTNCNIC(s) {
		return fmt.Errorf("invalid NTN/CNIC: %q", s)
	}
	return nil
}

// ParseIDList parses a comma separated list of invoice ids such as "1, 2,3"
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid invoice id: %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no invoice ids in %q", s)
	}
	return ids, nil
}

// SanitizeString removes control characters from operator input
func SanitizeString(s string) string {
	return controlChars.ReplaceAllString(s, "")
}
