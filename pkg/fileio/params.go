package fileio

import (
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

type optState uint8

const (
	optUnset optState = iota
	optCleared
	optPresent
)

// Opt is an optional request parameter. The zero value is unset and never
// reaches the wire; Clear sends the field empty; Some sends the value.
type Opt[T any] struct {
	value T
	state optState
}

// Some returns an Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, state: optPresent}
}

// Clear returns an Opt that is sent as an empty field.
func Clear[T any]() Opt[T] {
	return Opt[T]{state: optCleared}
}

// IsSet reports whether the parameter will appear in the request.
func (o Opt[T]) IsSet() bool { return o.state != optUnset }

// Get returns the held value and whether one is present.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.state == optPresent
}

type expiryKind uint8

const (
	expiryUnset expiryKind = iota
	expiryRaw
	expiryAt
	expiryIn
	expiryNone
)

// Expiry is the expiration of an uploaded file. Build one with ExpiresRaw,
// ExpiresAt, ExpiresIn or NoExpiry; the zero value leaves the remote default.
type Expiry struct {
	kind expiryKind
	raw  string
	at   time.Time
	in   time.Duration
}

// ExpiresRaw passes s through untouched, e.g. "2w" or "2023-02-28T21:01:02".
func ExpiresRaw(s string) Expiry { return Expiry{kind: expiryRaw, raw: s} }

// ExpiresAt expires the file at t.
func ExpiresAt(t time.Time) Expiry { return Expiry{kind: expiryAt, at: t} }

// ExpiresIn expires the file d after the request is built.
func ExpiresIn(d time.Duration) Expiry { return Expiry{kind: expiryIn, in: d} }

// NoExpiry sends an empty expires field.
func NoExpiry() Expiry { return Expiry{kind: expiryNone} }

// IsSet reports whether the expires field will appear in the request.
func (e Expiry) IsSet() bool { return e.kind != expiryUnset }

func (e Expiry) encode(now time.Time) string {
	switch e.kind {
	case expiryRaw:
		return e.raw
	case expiryAt:
		if e.at.IsZero() {
			return ""
		}
		return e.at.Format(time.RFC3339)
	case expiryIn:
		return now.Add(e.in).Format(time.RFC3339)
	default:
		return ""
	}
}

func (e Expiry) String() string {
	switch e.kind {
	case expiryUnset:
		return "<default>"
	case expiryNone:
		return "<none>"
	case expiryIn:
		return "+" + e.in.String()
	default:
		return e.encode(time.Time{})
	}
}

var countdownPattern = regexp.MustCompile(`^[1-9][0-9]*[yQMwdhms]$`)

// IsCountdown reports whether s is a file.io countdown such as "1y" or "80d".
func IsCountdown(s string) bool {
	return countdownPattern.MatchString(strings.TrimSpace(s))
}

// ParseExpiry turns user input into an Expiry. Countdowns and unrecognized
// text pass through, RFC 3339 timestamps become absolute, Go durations become
// relative, and "none" clears the field.
func ParseExpiry(s string) Expiry {
	s = strings.TrimSpace(s)
	switch {
	case s == "" || strings.EqualFold(s, "none"):
		return NoExpiry()
	case IsCountdown(s):
		return ExpiresRaw(s)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return ExpiresAt(t)
	}
	if d, err := time.ParseDuration(s); err == nil {
		return ExpiresIn(d)
	}
	return ExpiresRaw(s)
}

// Mode selects the update semantics.
type Mode string

const (
	// ModeReplaceAll resets every unspecified field to its remote default.
	ModeReplaceAll Mode = "replace_all"
	// ModeReplacePartial touches only the fields that are set.
	ModeReplacePartial Mode = "replace_partial"
)

func (m Mode) method() (string, error) {
	switch m {
	case ModeReplaceAll:
		return http.MethodPut, nil
	case ModeReplacePartial, "":
		return http.MethodPatch, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidMode, string(m), ModeReplaceAll, ModeReplacePartial)
	}
}

// UploadParams are the optional settings of an upload.
type UploadParams struct {
	Expires      Expiry
	MaxDownloads Opt[int]
	AutoDelete   Opt[bool]
}

// UpdateParams are the optional settings of an update. File is a local path
// whose content replaces the remote file.
type UpdateParams struct {
	File         Opt[string]
	Expires      Expiry
	MaxDownloads Opt[int]
	AutoDelete   Opt[bool]
	Mode         Mode
}

// ListParams filter the account listing. Zero values are left out of the query.
type ListParams struct {
	Search string
	Sort   string
	Offset int
	Limit  int
}

func (p ListParams) query() map[string]string {
	q := make(map[string]string, 4)
	if s := strings.TrimSpace(p.Search); s != "" {
		q["search"] = s
	}
	if s := strings.TrimSpace(p.Sort); s != "" {
		q["sort"] = s
	}
	if p.Offset > 0 {
		q["offset"] = strconv.Itoa(p.Offset)
	}
	if p.Limit > 0 {
		q["limit"] = strconv.Itoa(p.Limit)
	}
	return q
}

// encodeFields builds the multipart fields shared by upload and update.
// Falsy values are sent as empty strings.
func encodeFields(expires Expiry, maxDownloads Opt[int], autoDelete Opt[bool], now time.Time) map[string]string {
	form := make(map[string]string, 3)
	if expires.IsSet() {
		form["expires"] = expires.encode(now)
	}
	if maxDownloads.IsSet() {
		form["maxDownloads"] = ""
		if v, ok := maxDownloads.Get(); ok && v != 0 {
			form["maxDownloads"] = strconv.Itoa(v)
		}
	}
	if autoDelete.IsSet() {
		form["autoDelete"] = ""
		if v, ok := autoDelete.Get(); ok && v {
			form["autoDelete"] = "true"
		}
	}
	return form
}
