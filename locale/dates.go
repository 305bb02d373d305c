// Package locale formats publication timestamps for display.
package locale

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoDate is returned when a document has no publication timestamp.
	ErrNoDate = errors.New("locale: no publication date")
	// ErrInvalidDate is returned when a timestamp cannot be parsed.
	ErrInvalidDate = errors.New("locale: invalid publication date")
)

// DefaultLocale is used when no locale is configured or the tag is unknown.
const DefaultLocale = "pt-BR"

// Abbreviated month names, January first.
var months = map[string][12]string{
	"pt-BR": {"jan", "fev", "mar", "abr", "mai", "jun", "jul", "ago", "set", "out", "nov", "dez"},
	"en-US": {"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"},
}

// Timestamp layouts accepted from content backends. Prismic omits the colon
// in the zone offset.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-0700",
}

// Formatter renders timestamps as "DD Mon YYYY" using one locale's month table.
type Formatter struct {
	tag    string
	months [12]string
	loc    *time.Location
}

// ForLocale returns a Formatter for tag in loc. Unknown tags fall back to
// DefaultLocale and a nil loc means UTC.
func ForLocale(tag string, loc *time.Location) *Formatter {
	names, ok := months[tag]
	if !ok {
		tag = DefaultLocale
		names = months[DefaultLocale]
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Formatter{tag: tag, months: names, loc: loc}
}

// Supported reports whether tag has a month table.
func Supported(tag string) bool {
	_, ok := months[tag]
	return ok
}

// Tag returns the locale the formatter renders with.
func (f *Formatter) Tag() string {
	return f.tag
}

// Parse parses a raw backend timestamp.
func Parse(raw *string) (time.Time, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return time.Time{}, ErrNoDate
	}
	s := strings.TrimSpace(*raw)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// Format parses raw and returns its display form, e.g. "05 mar 2021".
func (f *Formatter) Format(raw *string) (string, error) {
	t, err := Parse(raw)
	if err != nil {
		return "", err
	}
	return f.FormatTime(t), nil
}

// FormatTime returns the display form of t in the formatter's location.
func (f *Formatter) FormatTime(t time.Time) string {
	t = t.In(f.loc)
	return fmt.Sprintf("%02d %s %04d", t.Day(), f.months[t.Month()-1], t.Year())
}
