// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// ID represents a UUID identifier used by every aggregate.
type ID string

var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the ID is a valid UUID.
func (i ID) IsValid() bool {
	return uuidRegex.MatchString(string(i))
}

// String returns the string representation.
func (i ID) String() string {
	return string(i)
}

// IsEmpty checks if the ID is empty.
func (i ID) IsEmpty() bool {
	return string(i) == ""
}

// NewID validates and creates an ID from a string.
func NewID(id string) (ID, error) {
	i := ID(strings.TrimSpace(id))
	if !i.IsValid() {
		return "", NewDomainError("shared", "NewID", ErrInvalidID, "invalid UUID format")
	}
	return i, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Language Value Object
// ═══════════════════════════════════════════════════════════════════════════

// LanguageCode identifies one of the two supported content languages.
type LanguageCode string

const (
	LangThai    LanguageCode = "th"
	LangEnglish LanguageCode = "en"
)

// IsValid checks if the language code is supported.
func (l LanguageCode) IsValid() bool {
	return l == LangThai || l == LangEnglish
}

// String returns the string representation.
func (l LanguageCode) String() string {
	return string(l)
}

// Other returns the fallback language.
func (l LanguageCode) Other() LanguageCode {
	if l == LangThai {
		return LangEnglish
	}
	return LangThai
}

// NewLanguageCode creates a LanguageCode with validation.
func NewLanguageCode(code string) (LanguageCode, error) {
	l := LanguageCode(strings.ToLower(strings.TrimSpace(code)))
	if !l.IsValid() {
		return "", ErrInvalidLanguage
	}
	return l, nil
}

// LocalizedText holds the Thai and English renditions of a piece of content.
// At least one language must be present.
type LocalizedText struct {
	Th string `json:"th,omitempty"`
	En string `json:"en,omitempty"`
}

// IsValid checks that at least one language is present.
func (t LocalizedText) IsValid() bool {
	return strings.TrimSpace(t.Th) != "" || strings.TrimSpace(t.En) != ""
}

// IsEmpty reports whether both languages are empty.
func (t LocalizedText) IsEmpty() bool {
	return !t.IsValid()
}

// In returns the text in the requested language, falling back to the other
// language when the requested one is missing.
func (t LocalizedText) In(lang LanguageCode) string {
	primary, fallback := t.En, t.Th
	if lang == LangThai {
		primary, fallback = t.Th, t.En
	}
	if strings.TrimSpace(primary) != "" {
		return primary
	}
	return fallback
}

// Merge overlays non-empty fields of other onto t and returns the result.
func (t LocalizedText) Merge(other LocalizedText) LocalizedText {
	out := t
	if strings.TrimSpace(other.Th) != "" {
		out.Th = other.Th
	}
	if strings.TrimSpace(other.En) != "" {
		out.En = other.En
	}
	return out
}

// NewLocalizedText creates a LocalizedText with validation.
func NewLocalizedText(th, en string) (LocalizedText, error) {
	t := LocalizedText{Th: strings.TrimSpace(th), En: strings.TrimSpace(en)}
	if !t.IsValid() {
		return LocalizedText{}, ErrMissingTranslation
	}
	return t, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Email Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Email represents a learner email address.
type Email string

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// IsValid checks the email format.
func (e Email) IsValid() bool {
	s := string(e)
	return len(s) >= 5 && len(s) <= 254 && emailRegex.MatchString(s)
}

// String returns the string representation.
func (e Email) String() string {
	return string(e)
}

// Normalize lowercases and trims the address.
func (e Email) Normalize() Email {
	return Email(strings.ToLower(strings.TrimSpace(string(e))))
}

// NewEmail creates an Email with validation.
func NewEmail(value string) (Email, error) {
	e := Email(value).Normalize()
	if !e.IsValid() {
		return "", ErrInvalidEmail
	}
	return e, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points.
type XP int

const (
	// MinXP is the minimum XP value.
	MinXP XP = 0
	// LevelStep is the XP cost of the first level; each subsequent level
	// costs LevelStep more than the previous one (progressive curve).
	LevelStep = 100
)

// IsValid checks if the XP value is valid.
func (x XP) IsValid() bool {
	return x >= MinXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add returns a new XP value with the amount added, clamped at zero.
func (x XP) Add(amount int) XP {
	result := int(x) + amount
	if result < 0 {
		return MinXP
	}
	return XP(result)
}

// Level computes the level from total XP. Level n requires
// LevelStep * n*(n+1)/2 cumulative XP: 100, 300, 600, 1000, ...
func (x XP) Level() Level {
	if x <= 0 {
		return 0
	}
	level := 0
	remaining := int(x)
	for {
		cost := LevelStep * (level + 1)
		if remaining < cost {
			break
		}
		remaining -= cost
		level++
	}
	return Level(level)
}

// ProgressToNextLevel returns how many XP are still needed for the next level.
func (x XP) ProgressToNextLevel() int {
	level := int(x.Level())
	cumulative := LevelStep * level * (level + 1) / 2
	nextCost := LevelStep * (level + 1)
	return cumulative + nextCost - int(x)
}

// NewXP creates an XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < 0 {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Level Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Level represents a learner level derived from XP.
type Level int

// IsValid checks if the level is non-negative.
func (l Level) IsValid() bool {
	return l >= 0
}

// Int returns the underlying int value.
func (l Level) Int() int {
	return int(l)
}

// RequiredXP returns the cumulative XP required to reach this level.
func (l Level) RequiredXP() int {
	n := int(l)
	return LevelStep * n * (n + 1) / 2
}

// Title returns a display title for the level band.
func (l Level) Title() string {
	switch {
	case l >= 50:
		return "Luminary"
	case l >= 30:
		return "Scholar"
	case l >= 15:
		return "Adept"
	case l >= 5:
		return "Explorer"
	default:
		return "Novice"
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Rank Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Rank represents a leaderboard position (1-based).
type Rank int

// Unranked marks a learner absent from the leaderboard.
const Unranked Rank = 0

// IsValid checks if the rank is valid.
func (r Rank) IsValid() bool {
	return r >= 0
}

// Int returns the underlying int value.
func (r Rank) Int() int {
	return int(r)
}

// IsUnranked checks if the learner is unranked.
func (r Rank) IsUnranked() bool {
	return r == Unranked
}

// IsTop checks if the rank is within the top N.
func (r Rank) IsTop(n int) bool {
	return r > 0 && int(r) <= n
}

// Compare returns -1, 0, or 1 comparing two ranks (lower is better).
func (r Rank) Compare(other Rank) int {
	switch {
	case r < other:
		return -1
	case r > other:
		return 1
	default:
		return 0
	}
}

// NewRank creates a Rank with validation.
func NewRank(position int) (Rank, error) {
	if position < 0 {
		return 0, ErrInvalidRank
	}
	return Rank(position), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Mastery Score Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Score represents a normalized score or mastery estimate in [0, 1].
type Score float64

// IsValid checks if the score is within bounds.
func (s Score) IsValid() bool {
	return s >= 0 && s <= 1
}

// Float64 returns the underlying float value.
func (s Score) Float64() float64 {
	return float64(s)
}

// Clamp forces the score into [0, 1].
func (s Score) Clamp() Score {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// NewScore creates a Score with validation.
func NewScore(value float64) (Score, error) {
	s := Score(value)
	if !s.IsValid() {
		return 0, ErrInvalidScore
	}
	return s, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// TimeRange Value Object
// ═══════════════════════════════════════════════════════════════════════════

// TimeRange represents a time period.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// IsValid checks if the time range is valid.
func (t TimeRange) IsValid() bool {
	return !t.From.IsZero() && !t.To.IsZero() && !t.From.After(t.To)
}

// Duration returns the duration of the time range.
func (t TimeRange) Duration() time.Duration {
	return t.To.Sub(t.From)
}

// Contains checks if a time is within the range.
func (t TimeRange) Contains(tm time.Time) bool {
	return (tm.Equal(t.From) || tm.After(t.From)) && (tm.Equal(t.To) || tm.Before(t.To))
}

// NewTimeRange creates a new TimeRange with validation.
func NewTimeRange(from, to time.Time) (TimeRange, error) {
	tr := TimeRange{From: from, To: to}
	if !tr.IsValid() {
		return TimeRange{}, NewDomainError("shared", "NewTimeRange", ErrInvalidInput, "'from' must be before 'to'")
	}
	return tr, nil
}

// LastNDays returns a TimeRange for the last N days.
func LastNDays(n int) TimeRange {
	now := time.Now()
	return TimeRange{
		From: now.AddDate(0, 0, -n),
		To:   now,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Pagination Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Pagination represents pagination parameters.
type Pagination struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Offset returns the offset for database queries.
func (p Pagination) Offset() int {
	if p.Page <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit()
}

// Limit returns the limit for database queries.
func (p Pagination) Limit() int {
	if p.PageSize <= 0 {
		return DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		return MaxPageSize
	}
	return p.PageSize
}

// NewPagination creates a new Pagination with defaults.
func NewPagination(page, pageSize int) Pagination {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return Pagination{Page: page, PageSize: pageSize}
}

// DefaultPagination returns default pagination.
func DefaultPagination() Pagination {
	return NewPagination(1, DefaultPageSize)
}

// ═══════════════════════════════════════════════════════════════════════════
// IRI helpers (xAPI)
// ═══════════════════════════════════════════════════════════════════════════

// IsIRI performs a shallow shape check for xAPI identifiers. Full RFC 3987
// validation is intentionally out of scope; the store only needs to reject
// obviously malformed values.
func IsIRI(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n\r") {
		return false
	}
	idx := strings.Index(s, ":")
	return idx > 0 && idx < len(s)-1
}

// ActivityIRI builds an activity IRI under the platform namespace.
func ActivityIRI(kind, id string) string {
	return fmt.Sprintf("https://rianhub.dev/xapi/activities/%s/%s", kind, id)
}
