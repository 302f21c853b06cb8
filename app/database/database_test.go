package database

import (
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := NewConnection(DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, dirty, err := RunMigrations(db); err != nil || dirty {
		t.Fatalf("Failed to run migrations: dirty=%v err=%v", dirty, err)
	}

	return db
}

func TestNewConnectionUnsupportedDriver(t *testing.T) {
	if _, err := NewConnection("mysql", "whatever"); err == nil {
		t.Error("Expected error for unsupported driver")
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	if got := pg.Rebind("SELECT * FROM t WHERE a = ? AND b = ?"); got != "SELECT * FROM t WHERE a = $1 AND b = $2" {
		t.Errorf("Unexpected postgres query: %s", got)
	}

	lite := &DB{driver: DriverSQLite}
	if got := lite.Rebind("SELECT ?"); got != "SELECT ?" {
		t.Errorf("Expected sqlite query unchanged, got %s", got)
	}
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := RunMigrations(db)
	if err != nil {
		t.Fatalf("Unexpected error on second run: %v", err)
	}
	if dirty || version != 1 {
		t.Errorf("Expected clean version 1, got %d dirty=%v", version, dirty)
	}
}

func TestSubscriptionRepository(t *testing.T) {
	repo := NewSubscriptionRepository(newTestDB(t))

	missing, err := repo.GetSubscription("mokotow")
	if err != nil || missing != nil {
		t.Fatalf("Expected nil subscription, got %+v err=%v", missing, err)
	}

	if err := repo.UpsertSubscription("mokotow", "https://www.olx.pl/a"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := repo.UpsertSubscription("mokotow", "https://www.olx.pl/b"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sub, err := repo.GetSubscription("mokotow")
	if err != nil || sub == nil {
		t.Fatalf("Expected subscription, got err=%v", err)
	}
	if sub.URL != "https://www.olx.pl/b" {
		t.Errorf("Expected updated URL, got '%s'", sub.URL)
	}
	if sub.NextPollAt != nil {
		t.Errorf("Expected no next poll time, got %v", sub.NextPollAt)
	}

	polled := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	if err := repo.UpdatePollTimes("mokotow", polled, polled.Add(10*time.Minute)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	sub, _ = repo.GetSubscription("mokotow")
	if sub.NextPollAt == nil || !sub.NextPollAt.Equal(polled.Add(10*time.Minute)) {
		t.Errorf("Expected next poll at %v, got %v", polled.Add(10*time.Minute), sub.NextPollAt)
	}

	if err := repo.UpdatePollTimes("unknown", polled, polled); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	count, err := repo.GetSubscriptionCount()
	if err != nil || count != 1 {
		t.Errorf("Expected 1 subscription, got %d err=%v", count, err)
	}
}

func TestSeenRepository(t *testing.T) {
	repo := NewSeenRepository(newTestDB(t))

	for _, id := range []string{"a", "b", "a"} {
		if err := repo.SaveSeen("mokotow", id); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
	if err := repo.SaveSeen("wola", "c"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	ids, err := repo.LoadSeen("mokotow")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 seen ids, got %v", ids)
	}
}

func TestListingRepository(t *testing.T) {
	repo := NewListingRepository(newTestDB(t))

	price := int64(250000)
	first := Listing{
		Subscription: "mokotow",
		ListingID:    "https://www.olx.pl/d/oferta/a",
		Title:        "Kawalerka",
		PublishedAt:  "10:15",
		Location:     "ul. Prosta 5",
		RentCents:    50000,
		PriceCents:   &price,
		Notified:     true,
	}
	if err := repo.UpsertListing(first); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	reclassified := first
	reclassified.IsWorse = true
	reclassified.Reasons = []string{"rent 500 zł exceeds 400 zł"}
	reclassified.Notified = false
	if err := repo.UpsertListing(reclassified); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	second := Listing{Subscription: "mokotow", ListingID: "https://www.olx.pl/d/oferta/b", Title: "Dwa pokoje"}
	if err := repo.UpsertListing(second); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	listings, err := repo.GetListings("mokotow", 10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("Expected 2 listings, got %d", len(listings))
	}
	if listings[0].ListingID != second.ListingID {
		t.Errorf("Expected newest first, got %s", listings[0].ListingID)
	}
	if listings[1].PriceCents != nil {
		t.Errorf("Expected listing without price, got %v", *listings[1].PriceCents)
	}

	got := listings[1]
	if !got.IsWorse || !got.Notified {
		t.Errorf("Expected worse and still notified, got worse=%v notified=%v", got.IsWorse, got.Notified)
	}
	if got.PriceCents == nil || *got.PriceCents != price {
		t.Errorf("Expected price %d, got %v", price, got.PriceCents)
	}
	if len(got.Reasons) != 1 {
		t.Errorf("Expected 1 reason, got %v", got.Reasons)
	}

	stats, err := repo.GetListingStats("mokotow")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.Total != 2 || stats.Worse != 1 || stats.Notified != 1 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestOutboxRepository(t *testing.T) {
	repo := NewOutboxRepository(newTestDB(t))

	id, err := repo.EnqueueMessage(OutboxMessage{
		Subscription: "mokotow",
		BatchTitle:   "1 listing",
		Subject:      "[10:15] - Kawalerka",
		HTML:         "<p>Kawalerka</p>",
		Attachments:  []string{"/tmp/a.png"},
		ListingIDs:   []string{"https://www.olx.pl/d/oferta/a"},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	pending, err := repo.GetPendingMessages(10)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != id {
		t.Fatalf("Expected message %d pending, got %+v", id, pending)
	}
	if len(pending[0].Attachments) != 1 || pending[0].Attachments[0] != "/tmp/a.png" {
		t.Errorf("Unexpected attachments %v", pending[0].Attachments)
	}

	if err := repo.MarkMessageSent(id); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := repo.MarkMessageSent(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for already sent message, got %v", err)
	}

	pending, _ = repo.GetPendingMessages(10)
	if len(pending) != 0 {
		t.Errorf("Expected no pending messages, got %d", len(pending))
	}
}
