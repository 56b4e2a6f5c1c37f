package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/siherrmann/hybridrag/helper"
)

// Metadata represents JSONB metadata stored in PostgreSQL
type Metadata map[string]interface{}

// Value implements the driver.Valuer interface for database storage
func (m Metadata) Value() (driver.Value, error) {
	return m.Marshal()
}

// Scan implements the sql.Scanner interface for database retrieval
func (m *Metadata) Scan(value interface{}) error {
	return m.Unmarshal(value)
}

// Marshal converts Metadata to JSON bytes
func (m Metadata) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal converts JSON bytes or Metadata to Metadata
func (m *Metadata) Unmarshal(value interface{}) error {
	if value == nil {
		*m = Metadata{}
		return nil
	}

	switch v := value.(type) {
	case Metadata:
		*m = v.Clone()
		return nil
	case map[string]interface{}:
		*m = Metadata(v).Clone()
		return nil
	case string:
		return json.Unmarshal([]byte(v), m)
	case []byte:
		return json.Unmarshal(v, m)
	}

	return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
}

// Clone returns a shallow copy of the metadata map. Nil stays nil.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	c := make(Metadata, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// Matches reports whether every key of filters is present in m with an equal
// string representation. An empty filter matches everything.
func (m Metadata) Matches(filters map[string]string) bool {
	for k, want := range filters {
		got, ok := m[k]
		if !ok {
			return false
		}
		s, ok := got.(string)
		if !ok {
			b, err := json.Marshal(got)
			if err != nil {
				return false
			}
			s = string(b)
		}
		if s != want {
			return false
		}
	}
	return true
}
