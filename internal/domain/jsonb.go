package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONMap maps a PostgreSQL JSONB column to map[string]any. It implements
// sql.Scanner and driver.Valuer so repositories can scan it directly.
type JSONMap map[string]any

// Scan implements the sql.Scanner interface.
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for JSONMap")
	}

	if len(data) == 0 {
		*j = JSONMap{}
		return nil
	}

	return json.Unmarshal(data, j)
}

// Value implements the driver.Valuer interface.
func (j JSONMap) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(j))
}

// JSONList maps a PostgreSQL JSONB array column to []string, used for the
// per-run errors list.
type JSONList []string

// Scan implements the sql.Scanner interface.
func (j *JSONList) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return errors.New("unsupported type for JSONList")
	}

	if len(data) == 0 {
		*j = JSONList{}
		return nil
	}

	return json.Unmarshal(data, j)
}

// Value implements the driver.Valuer interface.
func (j JSONList) Value() (driver.Value, error) {
	if len(j) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(j))
}
