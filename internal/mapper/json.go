package mapper

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gorm.io/datatypes"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// toJSON encodes v for a jsonb column, falling back to empty for nil values.
func toJSON(v interface{}, empty string) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil || string(raw) == "null" {
		return datatypes.JSON(empty)
	}
	return datatypes.JSON(raw)
}

// fromJSON decodes a jsonb column into dst. An empty column leaves dst
// untouched; a malformed one is an error naming the column.
func fromJSON(column string, raw datatypes.JSON, dst interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("failed to decode %s: %w", column, err)
	}
	return nil
}

// timePtr maps a zero autoUpdateTime to nil.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
