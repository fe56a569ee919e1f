package models

import (
	"database/sql/driver"
	"strings"
)

// StringArray stores a string slice as a "{a,b,c}" text column.
// The encoding matches PostgreSQL's text[] literal so the same rows read back on either driver.
type StringArray []string

// GormDataType declares the column type for auto-migration
func (StringArray) GormDataType() string {
	return "text"
}

// Scan implements the sql.Scanner interface for reading from database
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}

	str, ok := value.(string)
	if !ok {
		if bytes, ok := value.([]byte); ok {
			str = string(bytes)
		} else {
			*a = nil
			return nil
		}
	}

	str = strings.TrimPrefix(str, "{")
	str = strings.TrimSuffix(str, "}")

	if str == "" {
		*a = []string{}
		return nil
	}

	// Tags never contain commas, so a plain split is enough
	*a = strings.Split(str, ",")
	return nil
}

// Value implements the driver.Valuer interface for writing to database
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	if len(a) == 0 {
		return "{}", nil
	}
	return "{" + strings.Join(a, ",") + "}", nil
}
