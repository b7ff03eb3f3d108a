package conversation

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/brainytots/wa-connect/internal/domain"
)

var (
	// ErrDateFormat is returned for text that is not DD/MM/YYYY.
	ErrDateFormat = errors.New("date must be DD/MM/YYYY")
	// ErrImpossibleDate is returned for dates that do not exist on the calendar.
	ErrImpossibleDate = errors.New("no such calendar date")
	// ErrFutureDate is returned for dates after today.
	ErrFutureDate = errors.New("date is in the future")
)

const minBirthYear = 1900

// ParseDate parses day/month/year text with one consistent separator
// ("/", "-" or "."). The date must exist and must not be after today,
// where today is the calendar date of now in its own location.
func ParseDate(text string, now time.Time) (domain.Date, error) {
	text = strings.TrimSpace(text)
	sep := strings.IndexAny(text, "/-.")
	if sep < 0 {
		return domain.Date{}, ErrDateFormat
	}
	parts := strings.Split(text, text[sep:sep+1])
	if len(parts) != 3 {
		return domain.Date{}, ErrDateFormat
	}

	day, ok := datePart(parts[0], 1, 2)
	if !ok {
		return domain.Date{}, ErrDateFormat
	}
	month, ok := datePart(parts[1], 1, 2)
	if !ok {
		return domain.Date{}, ErrDateFormat
	}
	year, ok := datePart(parts[2], 4, 4)
	if !ok {
		return domain.Date{}, ErrDateFormat
	}

	if month < 1 || month > 12 || day < 1 || year < minBirthYear {
		return domain.Date{}, ErrImpossibleDate
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day || int(t.Month()) != month {
		return domain.Date{}, ErrImpossibleDate
	}

	d := domain.Date{Year: year, Month: time.Month(month), Day: day}
	if t.After(domain.DateOf(now).Time()) {
		return domain.Date{}, ErrFutureDate
	}
	return d, nil
}

func datePart(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
