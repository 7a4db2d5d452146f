package db

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
)

// OptionalID is a nullable integer identifier (for example a Figshare curation id).
// It implements sql.Scanner, driver.Valuer and the JSON interfaces so it maps to a
// nullable integer column and to JSON null.
type OptionalID struct {
	Int64 int64
	Valid bool
}

// SomeID returns a set OptionalID.
func SomeID(v int64) OptionalID {
	return OptionalID{Int64: v, Valid: true}
}

// IDFromPtr converts a pointer into an OptionalID; nil is unset.
func IDFromPtr(p *int64) OptionalID {
	if p == nil {
		return OptionalID{}
	}
	return SomeID(*p)
}

// Ptr returns nil for an unset id.
func (o OptionalID) Ptr() *int64 {
	if !o.Valid {
		return nil
	}
	v := o.Int64
	return &v
}

// Scan implements sql.Scanner
func (o *OptionalID) Scan(src interface{}) error {
	if o == nil {
		return fmt.Errorf("dbtypes: Scan on nil *OptionalID")
	}
	if src == nil {
		*o = OptionalID{}
		return nil
	}

	switch v := src.(type) {
	case int64:
		*o = SomeID(v)
		return nil
	case int32:
		*o = SomeID(int64(v))
		return nil
	case []byte:
		return o.parse(string(v))
	case string:
		return o.parse(v)
	default:
		return fmt.Errorf("dbtypes: cannot scan type %T into OptionalID", src)
	}
}

func (o *OptionalID) parse(s string) error {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("dbtypes: parse OptionalID %q: %w", s, err)
	}
	*o = SomeID(n)
	return nil
}

// Value implements driver.Valuer
func (o OptionalID) Value() (driver.Value, error) {
	if !o.Valid {
		return nil, nil
	}
	return o.Int64, nil
}

func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(o.Int64, 10)), nil
}

func (o *OptionalID) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = OptionalID{}
		return nil
	}
	var v int64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = SomeID(v)
	return nil
}
