// Package enums holds the string-backed states persisted in checkout tables.
package enums

import (
	"fmt"
	"slices"
)

func known[T ~string](v T, values ...T) bool {
	return slices.Contains(values, v)
}

// Validate returns an error naming kind when v is not a known value.
func Validate[T interface {
	~string
	IsValid() bool
}](kind string, v T) error {
	if v.IsValid() {
		return nil
	}
	return fmt.Errorf("invalid %s %q", kind, string(v))
}
