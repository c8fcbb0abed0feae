// Package restriction decides whether a user may attend an event based on
// the event's gender and age exclusions.
package restriction

import (
	"fmt"
	"slices"
	"time"

	"ticket-ledger/internal/status"
	"ticket-ledger/models"
)

// IsGenderRestricted reports whether the event excludes the user's gender.
// The restriction value names the excluded gender: "male-only" keeps men out.
func IsGenderRestricted(event *models.Event, user *models.User) bool {
	switch event.GenderRestriction {
	case models.GenderMaleOnly:
		return user.Gender == models.GenderMale
	case models.GenderFemaleOnly:
		return user.Gender == models.GenderFemale
	}
	return false
}

// IsAgeRestricted reports whether the user's age bucket is listed in the
// event's age restrictions. Users without a date of birth are never restricted.
func IsAgeRestricted(event *models.Event, user *models.User, now time.Time) bool {
	if user.DateOfBirth == nil || len(event.AgeRestriction) == 0 {
		return false
	}

	bucket := AgeBucket(AgeOn(*user.DateOfBirth, now))
	if bucket == "" {
		return false
	}
	return slices.Contains(event.AgeRestriction, bucket)
}

// AgeOn returns the number of whole years between dob and now.
func AgeOn(dob, now time.Time) int {
	dob = dob.UTC()
	now = now.UTC()

	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// AgeBucket maps an age to its restriction bucket. Ages 18 and 19 belong to no bucket.
func AgeBucket(age int) string {
	switch {
	case age < 18:
		return models.AgeUnder18
	case age >= 20 && age < 30:
		return models.Age20s
	case age >= 30 && age < 40:
		return models.Age30s
	case age >= 40:
		return models.Age40Plus
	}
	return ""
}

// Check returns a wrapped ErrRestrictionViolation when the user may not attend.
func Check(event *models.Event, user *models.User, now time.Time) error {
	if IsGenderRestricted(event, user) {
		return fmt.Errorf("%w: event %s is %s", status.ErrRestrictionViolation, event.ID, event.GenderRestriction)
	}
	if IsAgeRestricted(event, user, now) {
		return fmt.Errorf("%w: age group not admitted to event %s", status.ErrRestrictionViolation, event.ID)
	}
	return nil
}
