package httputil

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultPageLimit is the page size of queue listings when no limit is given.
	DefaultPageLimit = 50
	// MaxPageLimit caps the page size of queue listings.
	MaxPageLimit = 100
)

var (
	errInvalidOffset = errors.New("invalid offset parameter: must be a non-negative integer")
	errInvalidLimit  = errors.New("invalid limit parameter: must be between 1 and 100")
)

// ParsePagination reads the offset and limit query parameters of a listing. Both are zero
// when either is invalid.
func ParsePagination(c *gin.Context) (offset, limit int, err error) {
	offset, ok := queryInt(c, "offset", 0)
	if !ok || offset < 0 {
		return 0, 0, errInvalidOffset
	}
	limit, ok = queryInt(c, "limit", DefaultPageLimit)
	if !ok || limit < 1 || limit > MaxPageLimit {
		return 0, 0, errInvalidLimit
	}
	return offset, limit, nil
}

// Window clamps a page to a listing of n items and returns the slice bounds it covers.
func Window(n, offset, limit int) (start, end int) {
	start = min(max(offset, 0), n)
	end = min(start+max(limit, 0), n)
	return start, end
}

func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw, present := c.GetQuery(name)
	if !present {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	return value, err == nil
}
