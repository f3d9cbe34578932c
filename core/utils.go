package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"
)

// NowFunc is the clock used across the domain packages.
var NowFunc = time.Now // mockable

// Location is the school calendar: "today" and billing periods are read in it.
// Set from BillingConfig.Location when the services are wired.
var Location = time.UTC

// Today returns the current date of the school calendar, at midnight UTC.
func Today() time.Time {
	return LocalDate(NowFunc())
}

// LocalDate returns the calendar date of the instant `t` in Location, at midnight UTC.
func LocalDate(t time.Time) time.Time {
	return DateOf(t.In(Location))
}

// DateOf truncates `t` to its wall clock date, at midnight UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Truncate cuts `s` to at most `n` bytes without splitting a rune.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// Getwd tries to find the project root (the closest parent dir holding a go.mod).
// go-test changes the working directory to the test package being run during tests,
// so relative paths (`config/`, `assets/`) need an anchor.
// The current working directory is returned when no root is found (installed binaries).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == string(os.PathSeparator) || newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
