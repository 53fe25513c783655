package util

import (
    "strconv"
    "time"
)

// StampLayout is the compact timestamp embedded in snapshot file names and
// sqlite table suffixes, e.g. "20250830_143000".
const StampLayout = "20060102_150405"

// FormatStamp renders t as a file-name-safe UTC stamp.
func FormatStamp(t time.Time) string {
    return t.UTC().Format(StampLayout)
}

// ParseStamp parses a stamp produced by FormatStamp.
func ParseStamp(s string) (time.Time, bool) {
    t, err := time.Parse(StampLayout, s)
    if err != nil {
        return time.Time{}, false
    }
    return t, true
}

// ParseTime tries RFC3339, RFC3339Nano, stamp format, and unix seconds.
// Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if t, ok := ParseStamp(s); ok {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}
