package invoice

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

const prefix = "FAC"

// Next returns an invoice number like FAC-20260102150405-a1b2c3d4. The
// timestamp has second resolution, so the random suffix keeps numbers unique
// when two sales finalize within the same second.
func Next(now time.Time) string {
	stamp := now.UTC().Format("20060102150405")
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%s-%d", prefix, stamp, now.UnixNano()%1_0000_0000)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, stamp, hex.EncodeToString(buf))
}
