package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

const defaultCountry = "US"

// AddressSnapshot is the shipping/billing form captured on an order, persisted as JSONB.
// It is a copy of what the customer submitted, never a reference to a profile.
type AddressSnapshot struct {
	Name       string `json:"name" validate:"required,max=200"`
	Address    string `json:"address" validate:"required,max=500"`
	City       string `json:"city" validate:"required,max=120"`
	State      string `json:"state" validate:"required,max=120"`
	PostalCode string `json:"postal_code" validate:"required,max=20"`
	Country    string `json:"country" validate:"omitempty,len=2"`
	Phone      string `json:"phone,omitempty" validate:"omitempty,max=40"`
}

// Normalize trims every field and applies the default country.
func (a AddressSnapshot) Normalize() AddressSnapshot {
	out := AddressSnapshot{
		Name:       strings.TrimSpace(a.Name),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(a.Country)),
		Phone:      strings.TrimSpace(a.Phone),
	}
	if out.Country == "" {
		out.Country = defaultCountry
	}
	return out
}

// IsZero reports whether no address fields were supplied.
func (a AddressSnapshot) IsZero() bool {
	return a == AddressSnapshot{}
}

// Value marshals the snapshot into JSON for Postgres.
func (a AddressSnapshot) Value() (driver.Value, error) {
	buf, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Scan decodes JSONB into the snapshot.
func (a *AddressSnapshot) Scan(value interface{}) error {
	if value == nil {
		*a = AddressSnapshot{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("address snapshot: unsupported scan type %T", value)
	}

	var out AddressSnapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*a = out
	return nil
}
