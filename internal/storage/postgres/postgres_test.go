package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/FranksOps/digest/internal/news"
	"github.com/FranksOps/digest/internal/storage"
	"github.com/google/uuid"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if DIGEST_TEST_PG_DSN is set
	dsn := os.Getenv("DIGEST_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: DIGEST_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	// unique values so reruns against the same database don't collide
	mobile := "9" + uuid.NewString()[:9]
	mobile = digitsOnly(mobile)
	topic := "pg-" + uuid.NewString()

	u := &storage.User{Name: "PG User", MobileNo: mobile, Topics: []string{topic}}
	if err := b.CreateUser(ctx, u); err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	if err := b.CreateUser(ctx, &storage.User{Name: "Dup", MobileNo: mobile, Topics: []string{"x"}}); !errors.Is(err, storage.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}

	got, err := b.UpdateTopics(ctx, mobile, []string{topic, "markets"})
	if err != nil {
		t.Fatalf("Failed to update topics: %v", err)
	}
	if len(got.Topics) != 2 {
		t.Errorf("unexpected topics %v", got.Topics)
	}

	now := time.Now().UTC()
	d := &storage.DigestRecord{
		MobileNo:     mobile,
		Topic:        topic,
		Window:       "1d",
		Summary:      "1. Item",
		Articles:     []news.NormalizedArticle{{Title: "T", SourceName: "S", Snippet: "snip"}},
		TotalResults: 3,
		Enriched:     2,
		CreatedAt:    now,
	}
	if err := b.SaveDigest(ctx, d); err != nil {
		t.Fatalf("Failed to save digest: %v", err)
	}

	results, err := b.QueryDigests(ctx, storage.Filter{Topic: topic, Limit: 5})
	if err != nil {
		t.Fatalf("Failed to query digests: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Summary != "1. Item" || len(results[0].Articles) != 1 {
		t.Errorf("unexpected digest %+v", results[0])
	}
}

func digitsOnly(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			out = append(out, c)
		} else {
			out = append(out, '0'+c%10)
		}
	}
	return string(out)
}
