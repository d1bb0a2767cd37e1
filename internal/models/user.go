package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Tier gates access to margin features. The order matters: shorting requires
// at least TierIntermediate.
type Tier int

const (
	TierBeginner Tier = iota
	TierIntermediate
	TierAdvanced
)

var tierNames = map[Tier]string{
	TierBeginner:     "BEGINNER",
	TierIntermediate: "INTERMEDIATE",
	TierAdvanced:     "ADVANCED",
}

// ParseTier converts the wire/database representation back to a Tier.
func ParseTier(s string) (Tier, error) {
	for t, name := range tierNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("invalid tier %q", s)
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// AtLeast reports whether t grants the capabilities of required.
func (t Tier) AtLeast(required Tier) bool {
	return t >= required
}

// Value implements driver.Valuer so tiers are stored as their names.
func (t Tier) Value() (driver.Value, error) {
	return t.String(), nil
}

// Scan implements sql.Scanner.
func (t *Tier) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		parsed, err := ParseTier(v)
		if err != nil {
			return err
		}
		*t = parsed
		return nil
	case []byte:
		return t.Scan(string(v))
	}
	return fmt.Errorf("cannot scan %T into Tier", src)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// User is an account holder. CashBalance is only ever mutated through the
// broker's trade settlement and interest accrual paths.
type User struct {
	gorm.Model
	Username     string          `gorm:"uniqueIndex" json:"username"`
	Email        string          `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string          `gorm:"not null" json:"-"`
	// No column default: the int zero value already is TierBeginner, and a
	// text default would be coerced back into the int-kinded field on
	// insert.
	Tier         Tier            `gorm:"type:text" json:"tier"`
	CashBalance  decimal.Decimal `gorm:"type:decimal(20,4)" json:"cash_balance"`
	IsAdmin      bool            `gorm:"default:false" json:"is_admin"`
}
