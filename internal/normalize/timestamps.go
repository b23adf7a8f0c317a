package normalize

import (
	"errors"
	"strings"
	"time"
)

// Default layouts for the two timestamp flavours found in CDR exports.
const (
	DefaultCommaLayout = "2006-01-02 15:04:05,000"
	DefaultDotLayout   = "2006-01-02 15:04:05.000"
)

var (
	ErrMissingTimestamp = errors.New("missing timestamp")
	ErrInvalidTimestamp = errors.New("invalid timestamp format")
)

// TimestampLayouts selects a layout by the fractional-seconds separator.
type TimestampLayouts struct {
	Comma string
	Dot   string
}

// DefaultTimestampLayouts returns the layouts used when none are configured.
func DefaultTimestampLayouts() TimestampLayouts {
	return TimestampLayouts{Comma: DefaultCommaLayout, Dot: DefaultDotLayout}
}

// Parse parses v with the comma layout when v contains a comma and with the dot
// layout otherwise. Values are interpreted as UTC.
func (l TimestampLayouts) Parse(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	layout := l.Dot
	if strings.Contains(v, ",") {
		layout = l.Comma
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, ErrInvalidTimestamp
	}
	return t, nil
}

var javaPattern = strings.NewReplacer(
	"yyyy", "2006",
	"MM", "01",
	"dd", "02",
	"HH", "15",
	"mm", "04",
	"ss", "05",
	"SSS", "000",
)

// Layout accepts either a Go reference layout or a java.time style pattern
// (yyyy-MM-dd HH:mm:ss,SSS) and returns a Go layout.
func Layout(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || strings.Contains(pattern, "2006") {
		return pattern
	}
	return javaPattern.Replace(pattern)
}
