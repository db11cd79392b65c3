package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// OdooString is a custom string type that handles Odoo's dynamic typing.
// Odoo returns `false` (boolean) for empty text fields instead of an empty string.
// This type implements json.Unmarshaler to handle both string and bool(false).
type OdooString string

// UnmarshalJSON handles dynamic typing from Odoo
func (os *OdooString) UnmarshalJSON(data []byte) error {
	// 1. Try string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*os = OdooString(s)
		return nil
	}

	// 2. Try boolean (Odoo returns false for empty strings)
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if !b {
			*os = ""
			return nil
		}
		// If true, it's weird for a string field, but let's treat as "true" string
		*os = "true"
		return nil
	}

	return errors.New("OdooString: cannot unmarshal value into string")
}

// Value implements driver.Valuer interface for database storage
func (os OdooString) Value() (driver.Value, error) {
	return string(os), nil
}

// Scan implements sql.Scanner interface for database retrieval
func (os *OdooString) Scan(value interface{}) error {
	if value == nil {
		*os = ""
		return nil
	}
	switch v := value.(type) {
	case string:
		*os = OdooString(v)
	case []byte:
		*os = OdooString(string(v))
	default:
		return fmt.Errorf("failed to scan OdooString: %v", value)
	}
	return nil
}

// String returns native string value
func (os OdooString) String() string {
	return string(os)
}

// Many2One holds an Odoo relational value. Odoo returns `[id, "display"]`
// for a set relation and `false` for an empty one.
type Many2One struct {
	ID      int64
	Display string
	Valid   bool
}

// UnmarshalJSON handles both the [id, name] pair and false
func (m *Many2One) UnmarshalJSON(data []byte) error {
	var pair []interface{}
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) == 0 {
			*m = Many2One{}
			return nil
		}
		id, ok := pair[0].(float64)
		if !ok {
			return fmt.Errorf("Many2One: unexpected id %v", pair[0])
		}
		m.ID = int64(id)
		m.Valid = true
		if len(pair) > 1 {
			if s, ok := pair[1].(string); ok {
				m.Display = s
			}
		}
		return nil
	}

	var id int64
	if err := json.Unmarshal(data, &id); err == nil {
		*m = Many2One{ID: id, Valid: true}
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil && !b {
		*m = Many2One{}
		return nil
	}

	return errors.New("Many2One: cannot unmarshal value")
}

// Ptr returns the id as a nullable column value
func (m Many2One) Ptr() *int64 {
	if !m.Valid {
		return nil
	}
	id := m.ID
	return &id
}

// OdooDateTimeLayout is the format of Odoo datetime fields (always UTC)
const OdooDateTimeLayout = "2006-01-02 15:04:05"

// OdooTime is a datetime read from Odoo, which sends a "YYYY-MM-DD HH:MM:SS"
// string or false.
type OdooTime struct {
	time.Time
}

// UnmarshalJSON handles both the datetime string and false
func (t *OdooTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.ParseInLocation(OdooDateTimeLayout, s, time.UTC)
		if err != nil {
			parsed, err = time.ParseInLocation("2006-01-02", s, time.UTC)
			if err != nil {
				return fmt.Errorf("OdooTime: %w", err)
			}
		}
		t.Time = parsed
		return nil
	}

	var b bool
	if err := json.Unmarshal(data, &b); err == nil && !b {
		t.Time = time.Time{}
		return nil
	}
	return errors.New("OdooTime: cannot unmarshal value")
}
