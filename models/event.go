package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GenderRestriction names the gender an event excludes.
type GenderRestriction string

const (
	GenderRestrictionNone GenderRestriction = "none"
	GenderMaleOnly        GenderRestriction = "male-only"
	GenderFemaleOnly      GenderRestriction = "female-only"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Age buckets an event may exclude.
const (
	AgeUnder18 = "under 18"
	Age20s     = "20s"
	Age30s     = "30s"
	Age40Plus  = "40plus"
)

type Event struct {
	ID                     string            `json:"id"`
	Name                   string            `json:"name"`
	Price                  decimal.Decimal   `json:"price"`
	IsFree                 bool              `json:"is_free"`
	GenderRestriction      GenderRestriction `json:"gender_restriction"`
	AgeRestriction         []string          `json:"age_restriction"`
	HasMultipleTicketTypes bool              `json:"has_multiple_ticket_types"`
}

type User struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Gender      string     `json:"gender"`
	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`
	IsAdmin     bool       `json:"is_admin"`
}
