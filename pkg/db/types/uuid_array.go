// Package dbtypes holds column types shared by the gorm models.
package dbtypes

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// UUIDArray maps a Postgres uuid[] column. SQLite stores the same array
// literal as text.
type UUIDArray []uuid.UUID

// Scan implements sql.Scanner.
func (a *UUIDArray) Scan(src any) error {
	var raw pq.StringArray
	if err := raw.Scan(src); err != nil {
		return fmt.Errorf("scan uuid array: %w", err)
	}
	out := make(UUIDArray, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return fmt.Errorf("scan uuid array: parse %q: %w", value, err)
		}
		out = append(out, id)
	}
	*a = out
	return nil
}

// Value implements driver.Valuer.
func (a UUIDArray) Value() (driver.Value, error) {
	raw := make(pq.StringArray, 0, len(a))
	for _, id := range a {
		raw = append(raw, id.String())
	}
	return raw.Value()
}

// Strings renders the ids in order.
func (a UUIDArray) Strings() []string {
	out := make([]string, 0, len(a))
	for _, id := range a {
		out = append(out, id.String())
	}
	return out
}
