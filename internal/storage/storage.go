package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/FranksOps/digest/internal/news"
)

var (
	ErrUserExists   = errors.New("user already exists")
	ErrUserNotFound = errors.New("user not found")
)

var validMobileNo = regexp.MustCompile(`^[0-9]{10}$`)

// User is a subscriber keyed by mobile number.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	MobileNo  string    `json:"mobile_no"`
	Topics    []string  `json:"topics"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks the mobile number and cleans the topic list in place.
func (u *User) Validate() error {
	u.Name = strings.TrimSpace(u.Name)
	if u.Name == "" {
		return fmt.Errorf("%w: name cannot be empty", news.ErrValidation)
	}
	if err := ValidateMobileNo(u.MobileNo); err != nil {
		return err
	}
	topics, err := CleanTopics(u.Topics)
	if err != nil {
		return err
	}
	u.Topics = topics
	return nil
}

// ValidateMobileNo accepts exactly ten digits.
func ValidateMobileNo(mobileNo string) error {
	if !validMobileNo.MatchString(mobileNo) {
		return fmt.Errorf("%w: mobile number must be 10 digits", news.ErrValidation)
	}
	return nil
}

// CleanTopics trims topics, drops blanks and duplicates, and requires at
// least one topic to remain.
func CleanTopics(topics []string) ([]string, error) {
	seen := make(map[string]bool, len(topics))
	out := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one topic is required", news.ErrValidation)
	}
	return out, nil
}

// DigestRecord is a stored digest. Only the summary and article previews
// are kept; fetched page text is never persisted.
type DigestRecord struct {
	ID           string                   `json:"id"`
	MobileNo     string                   `json:"mobile_no,omitempty"`
	Topic        string                   `json:"topic"`
	Window       string                   `json:"time_period"`
	Summary      string                   `json:"summary"`
	Articles     []news.NormalizedArticle `json:"articles"`
	TotalResults int                      `json:"total_results"`
	Enriched     int                      `json:"enriched"`
	CreatedAt    time.Time                `json:"created_at"`
}

// Filter narrows a digest history query. Zero values match everything.
type Filter struct {
	Topic    string
	MobileNo string
	Since    *time.Time
	Limit    int
	Offset   int
}

// Backend stores users and digest history.
type Backend interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, mobileNo string) (*User, error)
	UpdateTopics(ctx context.Context, mobileNo string, topics []string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)

	SaveDigest(ctx context.Context, d *DigestRecord) error
	QueryDigests(ctx context.Context, filter Filter) ([]*DigestRecord, error)

	Close() error
}
