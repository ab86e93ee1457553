// Package storage holds the object stores attachment bytes are written to,
// and the journal of objects left behind by failed appends.
package storage

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RandomKey returns a date-partitioned, collision-free object key that keeps
// the original file extension.
func RandomKey(filename string) string {
	d := time.Now().UTC()
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 10 {
		ext = ""
	}
	return fmt.Sprintf("attachments/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.New(), ext)
}
