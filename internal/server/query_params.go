package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	headerIfMatch = "If-Match"
	headerETag    = "ETag"
)

// expectedVersion reads If-Match. Both strong and weak forms of the
// version ETag are accepted.
func expectedVersion(c *gin.Context) (*int64, error) {
	raw := strings.TrimSpace(c.GetHeader(headerIfMatch))
	if raw == "" || raw == "*" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "W/")
	raw = strings.Trim(raw, `"`)
	parsed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || parsed <= 0 {
		return nil, newValidationError("If-Match", "invalid_version", "If-Match must carry an invoice version")
	}
	return &parsed, nil
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

func lineItemIndex(c *gin.Context) (int, error) {
	index, err := strconv.Atoi(strings.TrimSpace(c.Param("index")))
	if err != nil {
		return 0, newValidationError("index", "invalid_line_item_index", "index must be an integer")
	}
	return index, nil
}
