package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xraph/wormhole"
	"github.com/xraph/wormhole/beam"
	"github.com/xraph/wormhole/channel"
	"github.com/xraph/wormhole/failure"
	"github.com/xraph/wormhole/id"
	"github.com/xraph/wormhole/internal/entity"
	"github.com/xraph/wormhole/user"
)

func ctx() context.Context { return context.Background() }

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	s := New()

	if err := s.Migrate(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx()); !errors.Is(err, wormhole.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// beam.Store
// ──────────────────────────────────────────────────

func TestBeamCRUD(t *testing.T) {
	s := New()

	b := &beam.Beam{Entity: entity.New(), ID: id.NewBeamID(), Name: "general", Active: true}
	if err := s.CreateBeam(ctx(), b); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateBeam(ctx(), b); !errors.Is(err, wormhole.ErrBeamExists) {
		t.Fatalf("expected ErrBeamExists, got %v", err)
	}

	got, err := s.GetBeam(ctx(), "general")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != b.ID {
		t.Fatalf("ID mismatch: got %v, want %v", got.ID, b.ID)
	}

	// Mutating the returned copy must not change the store.
	got.Active = false
	again, _ := s.GetBeam(ctx(), "general")
	if !again.Active {
		t.Fatal("store shares memory with caller")
	}

	got.Timeout = 30
	if err := s.UpdateBeam(ctx(), got); err != nil {
		t.Fatal(err)
	}
	again, _ = s.GetBeam(ctx(), "general")
	if again.Timeout != 30 || again.Active {
		t.Fatalf("update not applied: %+v", again)
	}

	if _, err := s.GetBeam(ctx(), "missing"); !errors.Is(err, wormhole.ErrBeamNotFound) {
		t.Fatalf("expected ErrBeamNotFound, got %v", err)
	}
	if err := s.UpdateBeam(ctx(), &beam.Beam{Name: "missing"}); !errors.Is(err, wormhole.ErrBeamNotFound) {
		t.Fatalf("expected ErrBeamNotFound, got %v", err)
	}

	_ = s.CreateBeam(ctx(), &beam.Beam{Entity: entity.New(), ID: id.NewBeamID(), Name: "art"})
	beams, err := s.ListBeams(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if len(beams) != 2 || beams[0].Name != "art" || beams[1].Name != "general" {
		t.Fatalf("unexpected beam order: %v", beams)
	}
}

// ──────────────────────────────────────────────────
// channel.Store
// ──────────────────────────────────────────────────

func newWormhole(channelID, beamName string) *channel.Wormhole {
	return &channel.Wormhole{
		Entity:    entity.New(),
		ID:        id.NewWormholeID(),
		ChannelID: channelID,
		Beam:      beamName,
		Active:    true,
	}
}

func TestWormholeCRUD(t *testing.T) {
	s := New()

	for _, ch := range []string{"300", "100", "200"} {
		if err := s.CreateWormhole(ctx(), newWormhole(ch, "general")); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.CreateWormhole(ctx(), newWormhole("400", "art"))

	if err := s.CreateWormhole(ctx(), newWormhole("100", "art")); !errors.Is(err, wormhole.ErrWormholeExists) {
		t.Fatalf("expected ErrWormholeExists, got %v", err)
	}

	list, err := s.ListWormholes(ctx(), "general")
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 wormholes, got %d", len(list))
	}
	for i, want := range []string{"300", "100", "200"} {
		if list[i].ChannelID != want {
			t.Fatalf("position %d: got %q, want %q", i, list[i].ChannelID, want)
		}
	}

	all, _ := s.ListWormholes(ctx(), "")
	if len(all) != 4 {
		t.Fatalf("expected 4 wormholes, got %d", len(all))
	}

	w, _ := s.GetWormhole(ctx(), "300")
	w.Readonly = true
	if err := s.UpdateWormhole(ctx(), w); err != nil {
		t.Fatal(err)
	}
	list, _ = s.ListWormholes(ctx(), "general")
	if list[0].ChannelID != "300" || !list[0].Readonly {
		t.Fatal("update must keep creation order")
	}

	if err := s.IncrementMessages(ctx(), "300"); err != nil {
		t.Fatal(err)
	}
	_ = s.IncrementMessages(ctx(), "300")
	w, _ = s.GetWormhole(ctx(), "300")
	if w.Messages != 2 {
		t.Fatalf("messages: got %d, want 2", w.Messages)
	}

	if err := s.DeleteWormhole(ctx(), "300"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetWormhole(ctx(), "300"); !errors.Is(err, wormhole.ErrWormholeNotFound) {
		t.Fatalf("expected ErrWormholeNotFound, got %v", err)
	}
	if err := s.IncrementMessages(ctx(), "300"); !errors.Is(err, wormhole.ErrWormholeNotFound) {
		t.Fatalf("expected ErrWormholeNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// user.Store
// ──────────────────────────────────────────────────

func TestUserCRUD(t *testing.T) {
	s := New()

	alice := &user.User{Entity: entity.New(), ID: id.NewUserID(), AccountID: 2, Nickname: "alice", HomeID: "100"}
	bob := &user.User{Entity: entity.New(), ID: id.NewUserID(), AccountID: 1, Nickname: "bob"}
	if err := s.CreateUser(ctx(), alice); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx(), bob); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx(), &user.User{AccountID: 2, Nickname: "other"}); !errors.Is(err, wormhole.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
	if err := s.CreateUser(ctx(), &user.User{AccountID: 3, Nickname: "alice"}); !errors.Is(err, wormhole.ErrNicknameTaken) {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}

	got, err := s.GetUserByNickname(ctx(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.AccountID != 2 || got.HomeID != "100" {
		t.Fatalf("unexpected user: %+v", got)
	}

	got.Nickname = "bob"
	if err := s.UpdateUser(ctx(), got); !errors.Is(err, wormhole.ErrNicknameTaken) {
		t.Fatalf("expected ErrNicknameTaken, got %v", err)
	}
	got.Nickname = "alicia"
	if err := s.UpdateUser(ctx(), got); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUserByNickname(ctx(), "alice"); !errors.Is(err, wormhole.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	users, _ := s.ListUsers(ctx())
	if len(users) != 2 || users[0].AccountID != 1 {
		t.Fatalf("unexpected user order: %v", users)
	}

	if err := s.DeleteUser(ctx(), 1); err != nil {
		t.Fatal(err)
	}
	if _, err := s.GetUser(ctx(), 1); !errors.Is(err, wormhole.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if err := s.DeleteUser(ctx(), 1); !errors.Is(err, wormhole.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

// ──────────────────────────────────────────────────
// failure.Store
// ──────────────────────────────────────────────────

func TestFailureLog(t *testing.T) {
	s := New()
	now := time.Now().UTC()

	for i, ch := range []string{"100", "200", "100"} {
		e := &failure.Entry{
			Entity:    entity.New(),
			ID:        id.NewFailureID(),
			Op:        failure.OpSend,
			Beam:      "general",
			ChannelID: ch,
			FailedAt:  now.Add(time.Duration(i) * time.Minute),
		}
		if err := s.RecordFailure(ctx(), e); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListFailures(ctx(), failure.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if !all[0].FailedAt.After(all[1].FailedAt) {
		t.Fatal("expected newest first")
	}

	got, err := s.GetFailure(ctx(), all[0].ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ChannelID != "100" {
		t.Fatalf("channel: got %q", got.ChannelID)
	}
	if _, err := s.GetFailure(ctx(), id.NewFailureID()); !errors.Is(err, wormhole.ErrFailureNotFound) {
		t.Fatalf("expected ErrFailureNotFound, got %v", err)
	}

	filtered, _ := s.ListFailures(ctx(), failure.ListOpts{ChannelID: "100"})
	if len(filtered) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(filtered))
	}

	page, _ := s.ListFailures(ctx(), failure.ListOpts{Offset: 1, Limit: 1})
	if len(page) != 1 || page[0].ID != all[1].ID {
		t.Fatal("pagination mismatch")
	}

	purged, err := s.PurgeFailures(ctx(), now.Add(90*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if purged != 2 {
		t.Fatalf("purged: got %d, want 2", purged)
	}
	count, _ := s.CountFailures(ctx())
	if count != 1 {
		t.Fatalf("count: got %d, want 1", count)
	}
}
