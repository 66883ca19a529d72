package appointment

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	dateLayout = "2006-01-02"

	minDurationMinutes = 15
	maxDurationMinutes = 180
	maxNotesLength     = 500
	maxReasonLength    = 500
	maxServiceName     = 100
	maxClientRefLength = 128
	maxIdempotencyKey  = 128

	defaultListLimit = 100
	maxListLimit     = 500
)

var (
	employeeRefPattern = regexp.MustCompile(`^70\d{4}$`)
	timePattern        = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
)

func normalizeClientRef(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || len(trimmed) > maxClientRefLength {
		return "", ErrInvalidClientRef
	}
	return trimmed, nil
}

func normalizeEmployeeRef(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if !employeeRefPattern.MatchString(trimmed) {
		return "", fmt.Errorf("employee %q: %w", raw, ErrInvalidEmployeeRef)
	}
	return trimmed, nil
}

// NormalizeDate は YYYY-MM-DD 形式の実在する日付かを検証します。
func NormalizeDate(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	parsed, err := time.Parse(dateLayout, trimmed)
	if err != nil {
		return "", fmt.Errorf("date %q: %w", raw, ErrInvalidDate)
	}
	return parsed.Format(dateLayout), nil
}

// NormalizeTime は H:MM / HH:MM を受け取り、ゼロ埋めした HH:MM を返します。
func NormalizeTime(raw string) (string, error) {
	matches := timePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if matches == nil {
		return "", fmt.Errorf("time %q: %w", raw, ErrInvalidTime)
	}

	hour, _ := strconv.Atoi(matches[1])
	minute, _ := strconv.Atoi(matches[2])
	if hour > 23 || minute > 59 {
		return "", fmt.Errorf("time %q: %w", raw, ErrInvalidTime)
	}

	return fmt.Sprintf("%02d:%02d", hour, minute), nil
}

func normalizeID(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidID
	}
	return trimmed, nil
}

func normalizeNotes(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(trimmed) > maxNotesLength {
		return "", ErrInvalidNotes
	}
	return trimmed, nil
}

func normalizeReason(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if utf8.RuneCountInString(trimmed) > maxReasonLength {
		return "", ErrInvalidReason
	}
	return trimmed, nil
}

func normalizeIdempotencyKey(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" || len(trimmed) > maxIdempotencyKey {
		return nil, ErrInvalidIdempotencyKey
	}
	return &trimmed, nil
}

func resolveService(kind ServiceKind, override *int) (serviceDefinition, error) {
	def, ok := serviceCatalog[kind]
	if !ok {
		return serviceDefinition{}, fmt.Errorf("service %q: %w", kind, ErrInvalidServiceKind)
	}
	if override != nil {
		if *override < minDurationMinutes || *override > maxDurationMinutes {
			return serviceDefinition{}, ErrInvalidDuration
		}
		def.durationMinutes = *override
	}
	return def, nil
}

func normalizeListFilter(date string, status *Status, limit int) (ListFilter, error) {
	filter := ListFilter{Limit: limit}

	if strings.TrimSpace(date) != "" {
		normalized, err := NormalizeDate(date)
		if err != nil {
			return ListFilter{}, err
		}
		filter.Date = normalized
	}

	if status != nil {
		if !isValidStatus(*status) {
			return ListFilter{}, ErrInvalidStatus
		}
		s := *status
		filter.Status = &s
	}

	switch {
	case limit == 0:
		filter.Limit = defaultListLimit
	case limit < 0 || limit > maxListLimit:
		return ListFilter{}, ErrInvalidLimit
	}

	return filter, nil
}

func isValidStatus(status Status) bool {
	for _, s := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func validateActor(actor Actor) error {
	if strings.TrimSpace(actor.Ref) == "" {
		return ErrInvalidActor
	}
	switch actor.Role {
	case RoleClient, RoleEmployee, RoleAdmin, RoleSystem:
		return nil
	default:
		return ErrInvalidActor
	}
}
