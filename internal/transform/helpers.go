package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ISOTimeLayout is the Caliper eventTime format, millisecond precision in UTC.
const ISOTimeLayout = "2006-01-02T15:04:05.000Z"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// ISOTime converts a tracking timestamp (string or time.Time) to
// ISOTimeLayout. Timestamps without an offset are taken as UTC.
func ISOTime(v interface{}) (string, error) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(ISOTimeLayout), nil
	case string:
		for _, layout := range timeLayouts {
			if ts, err := time.Parse(layout, t); err == nil {
				return ts.UTC().Format(ISOTimeLayout), nil
			}
		}
		return "", fmt.Errorf("unrecognized timestamp %q", t)
	case nil:
		return "", fmt.Errorf("timestamp is missing")
	default:
		return "", fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// ISODuration formats a number of seconds as an ISO 8601 duration:
// 12 → PT12S, 90 → PT1M30S, 12.5 → PT12.5S, 90000 → P1DT1H, 0 → P0D.
// Seconds are rounded to the microsecond before being split into units.
func ISODuration(seconds float64) string {
	var b strings.Builder
	if seconds < 0 {
		b.WriteByte('-')
		seconds = -seconds
	}
	micros := int64(math.Round(seconds * 1e6))
	if micros == 0 {
		return "P0D"
	}
	b.WriteByte('P')

	frac := micros % 1e6
	secs := micros / 1e6
	days := secs / 86400
	secs %= 86400
	hours := secs / 3600
	secs %= 3600
	mins := secs / 60
	secs %= 60

	if days > 0 {
		fmt.Fprintf(&b, "%dD", days)
	}
	if hours == 0 && mins == 0 && secs == 0 && frac == 0 {
		return b.String()
	}
	b.WriteByte('T')
	if hours > 0 {
		fmt.Fprintf(&b, "%dH", hours)
	}
	if mins > 0 {
		fmt.Fprintf(&b, "%dM", mins)
	}
	switch {
	case frac > 0:
		fmt.Fprintf(&b, "%d.%s", secs, strings.TrimRight(fmt.Sprintf("%06d", frac), "0"))
		b.WriteByte('S')
	case secs > 0:
		b.WriteString(strconv.FormatInt(secs, 10))
		b.WriteByte('S')
	}
	return b.String()
}

// Float coerces JSON numbers, Go numerics and numeric strings to float64.
func Float(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

// Seconds reads a numeric field of data and returns it as an ISO duration.
func Seconds(data map[string]interface{}, key string) (string, error) {
	v, ok := data[key]
	if !ok {
		return "", fmt.Errorf("%s is missing", key)
	}
	f, ok := Float(v)
	if !ok {
		return "", fmt.Errorf("%s is not numeric: %v", key, v)
	}
	return ISODuration(f), nil
}

// BlockIDFromReferrer extracts the activate_block_id query parameter of a
// courseware URL. ok is false when the parameter is absent.
func BlockIDFromReferrer(referrer string) (string, bool) {
	if referrer == "" {
		return "", false
	}
	u, err := url.Parse(referrer)
	if err != nil {
		return "", false
	}
	ids := u.Query()["activate_block_id"]
	if len(ids) == 0 || ids[0] == "" {
		return "", false
	}
	return ids[0], true
}

// VideoBlockID builds the usage key of a video block in a course.
func VideoBlockID(courseID, videoID string) string {
	return fmt.Sprintf("block-v1:%s+type@video+block@%s", courseID, videoID)
}

// CourseURL returns the LMS URL of a course.
func CourseURL(lmsRoot, courseID string) string {
	return strings.TrimRight(lmsRoot, "/") + "/courses/" + courseID
}

// String returns v when it is a non-empty string.
func String(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}
