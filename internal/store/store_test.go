package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenKeepsPath(t *testing.T) {
	db := testDB(t)
	if filepath.Base(db.Path()) != "test.db" {
		t.Errorf("path = %q", db.Path())
	}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestMigrateRefusesDirtySchema(t *testing.T) {
	db := testDB(t)
	if _, err := db.Exec("UPDATE schema_migrations SET dirty = 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); !errors.Is(err, ErrDirty) {
		t.Errorf("Migrate() = %v, want ErrDirty", err)
	}
}

func TestInsertAndList(t *testing.T) {
	db := testDB(t)

	for i, n := range []*Notification{
		{Kind: "message", SenderID: "U1", SenderName: "Ana", Title: "Ana", Body: "first", MessageID: "m1", CreatedAt: 1000},
		{Kind: "message", SenderID: "U2", SenderName: "Bo", Title: "Bo", Body: "second", MessageID: "m2", CreatedAt: 2000},
		{Kind: "connection_request", SenderID: "U3", Title: "Cy wants to connect", CreatedAt: 3000},
	} {
		inserted, err := db.InsertNotification(n)
		if err != nil {
			t.Fatal(err)
		}
		if !inserted || n.ID == 0 {
			t.Fatalf("insert %d: inserted=%v id=%d", i, inserted, n.ID)
		}
	}

	list, err := db.ListNotifications(false, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d notifications, want 3", len(list))
	}
	if list[0].Kind != "connection_request" || list[2].MessageID != "m1" {
		t.Errorf("order = %s..%s, want newest first", list[0].Kind, list[2].MessageID)
	}
}

func TestInsertDuplicateMessageIgnored(t *testing.T) {
	db := testDB(t)

	n := &Notification{Kind: "message", SenderID: "U1", Body: "hi", MessageID: "m1"}
	if _, err := db.InsertNotification(n); err != nil {
		t.Fatal(err)
	}
	dup := &Notification{Kind: "message", SenderID: "U1", Body: "hi", MessageID: "m1"}
	inserted, err := db.InsertNotification(dup)
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Error("duplicate message notification was inserted")
	}

	// Notifications without a message id are never deduplicated.
	for range 2 {
		if ok, err := db.InsertNotification(&Notification{Kind: "system", Body: "x"}); err != nil || !ok {
			t.Fatalf("system insert: %v %v", ok, err)
		}
	}

	total, _, err := db.NotificationCount()
	if err != nil {
		t.Fatal(err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestMarkSeen(t *testing.T) {
	db := testDB(t)

	a := &Notification{Kind: "message", SenderID: "U1", MessageID: "m1"}
	b := &Notification{Kind: "message", SenderID: "U1", MessageID: "m2"}
	c := &Notification{Kind: "message", SenderID: "U2", MessageID: "m3"}
	for _, n := range []*Notification{a, b, c} {
		if _, err := db.InsertNotification(n); err != nil {
			t.Fatal(err)
		}
	}

	if err := db.MarkNotificationSeen(c.ID); err != nil {
		t.Fatal(err)
	}
	if err := db.MarkNotificationSeen(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("mark unknown = %v, want ErrNotFound", err)
	}

	n, err := db.MarkSenderSeen("U1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("MarkSenderSeen changed %d, want 2", n)
	}

	_, unseen, err := db.NotificationCount()
	if err != nil {
		t.Fatal(err)
	}
	if unseen != 0 {
		t.Errorf("unseen = %d, want 0", unseen)
	}

	got, err := db.GetNotification(a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Seen {
		t.Error("notification a not seen")
	}
	if _, err := db.GetNotification(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("get unknown = %v, want ErrNotFound", err)
	}
}

func TestListUnseenOnly(t *testing.T) {
	db := testDB(t)

	seen := &Notification{Kind: "message", MessageID: "m1", Seen: true}
	fresh := &Notification{Kind: "message", MessageID: "m2"}
	for _, n := range []*Notification{seen, fresh} {
		if _, err := db.InsertNotification(n); err != nil {
			t.Fatal(err)
		}
	}
	list, err := db.ListNotifications(true, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].ID != fresh.ID {
		t.Errorf("unseen list = %+v", list)
	}
}

func TestSearchNotifications(t *testing.T) {
	db := testDB(t)

	for _, n := range []*Notification{
		{Kind: "message", SenderName: "Ana", Title: "Ana", Body: "see you at the rooftop party", MessageID: "m1"},
		{Kind: "message", SenderName: "Bo", Title: "Bo", Body: "tickets are sold out", MessageID: "m2"},
	} {
		if _, err := db.InsertNotification(n); err != nil {
			t.Fatal(err)
		}
	}

	results, err := db.SearchNotifications("rooftop", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Notification.MessageID != "m1" {
		t.Errorf("result = %+v", results[0].Notification)
	}
	if results[0].Snippet == "" {
		t.Error("empty snippet")
	}

	bySender, err := db.SearchNotifications("Bo", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(bySender) != 1 || bySender[0].Notification.MessageID != "m2" {
		t.Errorf("sender search = %+v", bySender)
	}
}
