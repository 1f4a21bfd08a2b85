package models

import (
	"encoding/hex"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// runIDPattern is the external contract for run identifiers:
// YYYYMMDDTHHMMSSZ followed by six lowercase hex characters.
var runIDPattern = regexp.MustCompile(`^\d{8}T\d{6}Z_[0-9a-f]{6}$`)

// NewRunID mints a run identifier for the given wall-clock time.
func NewRunID(now time.Time) string {
	u := uuid.New()
	return now.UTC().Format("20060102T150405Z") + "_" + hex.EncodeToString(u[:3])
}

// ValidRunID reports whether s matches the run id contract.
func ValidRunID(s string) bool {
	return runIDPattern.MatchString(s)
}

// RunIDTime parses the timestamp prefix of a run id. Returns the zero time
// for malformed ids.
func RunIDTime(runID string) time.Time {
	if len(runID) < 16 {
		return time.Time{}
	}
	t, err := time.Parse("20060102T150405Z", runID[:16])
	if err != nil {
		return time.Time{}
	}
	return t
}
