// Package id provides unique identifier generation for renders.
package id

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Generate creates a new unique render ID. It is safe to use as a
// directory name and as an object key component.
// Format: render-<yyyymmdd>-<uuid hex>
// Example: render-20260307-9f1c0a7e3b8d4c2a8e6f1b2c3d4e5f60
func Generate() string {
	return fmt.Sprintf("render-%s-%s",
		time.Now().UTC().Format("20060102"),
		strings.ReplaceAll(uuid.NewString(), "-", ""),
	)
}
