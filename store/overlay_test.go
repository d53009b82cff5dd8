package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

func newOverlayStore(gw *fakeGateway, assets *fakeAssets, feed *fakeFeed) *OverlaySettingsStore {
	ch := NewChallengeStore(1, gw, feed, nil)
	return NewOverlaySettingsStore(1, gw, assets, ch, feed, nil)
}

func TestFetchOne_CreatesDefaultsWhenEmpty(t *testing.T) {
	gw := newFakeGateway()
	s := newOverlayStore(gw, newFakeAssets(), newFakeFeed())

	row, err := s.FetchOne(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if row.ID == 0 {
		t.Fatal("default row was not persisted")
	}
	if row.PositionX != DefaultPositionX || row.Width != DefaultWidth {
		t.Errorf("defaults = %+v", row)
	}
	if !row.ConfettiEnabled || !row.SoundEnabled {
		t.Error("effects should default to enabled")
	}
	if row.ChallengeID != nil {
		t.Errorf("ChallengeID = %v, want nil for the global default row", *row.ChallengeID)
	}

	// A second call must reuse the stored row, not insert again.
	again, err := s.FetchOne(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if again.ID != row.ID {
		t.Errorf("second FetchOne created a new row (%d != %d)", again.ID, row.ID)
	}
	if rows, _ := s.FetchAllForUser(context.Background()); len(rows) != 1 {
		t.Errorf("stored rows = %d, want 1", len(rows))
	}
}

func TestFetchOne_PrefersActiveChallengeRow(t *testing.T) {
	gw := newFakeGateway()
	feed := newFakeFeed()
	ch := NewChallengeStore(1, gw, feed, nil)
	s := NewOverlaySettingsStore(1, gw, newFakeAssets(), ch, feed, nil)

	active := gw.seedChallenge(models.Challenge{UserID: 1, Title: "subs", MaxValue: 10, IsActive: true})
	ch.FetchAll(context.Background())

	cid := active.ID
	scoped := models.OverlaySettings{UserID: 1, ChallengeID: &cid, PositionX: 55}
	if err := gw.InsertSettings(context.Background(), &scoped); err != nil {
		t.Fatal(err)
	}
	global := models.OverlaySettings{UserID: 1, PositionX: 1}
	if err := gw.InsertSettings(context.Background(), &global); err != nil {
		t.Fatal(err)
	}

	row, err := s.FetchOne(context.Background(), nil)
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if row.ID != scoped.ID {
		t.Errorf("resolved row %d, want the active challenge's row %d", row.ID, scoped.ID)
	}
}

func TestFetchOne_FallsBackToGlobalRow(t *testing.T) {
	gw := newFakeGateway()
	s := newOverlayStore(gw, newFakeAssets(), newFakeFeed())

	global := models.OverlaySettings{UserID: 1, PositionX: 7}
	if err := gw.InsertSettings(context.Background(), &global); err != nil {
		t.Fatal(err)
	}

	// Explicit challenge id with no scoped row: fall through to the global
	// row rather than create a scoped one.
	cid := uint(42)
	row, err := s.FetchOne(context.Background(), &cid)
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if row.ID != global.ID {
		t.Errorf("resolved row %d, want global row %d", row.ID, global.ID)
	}
}

func TestSave_InsertsWhenNothingCached(t *testing.T) {
	gw := newFakeGateway()
	s := newOverlayStore(gw, newFakeAssets(), newFakeFeed())

	x := 66.0
	row, err := s.Save(context.Background(), SettingsPatch{PositionX: &x})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if row.ID == 0 {
		t.Fatal("Save did not insert")
	}
	if row.PositionX != 66 {
		t.Errorf("PositionX = %v, want 66", row.PositionX)
	}
	if row.Height != DefaultHeight {
		t.Errorf("Height = %v, want default %v", row.Height, DefaultHeight)
	}
	if row.UserID != 1 {
		t.Errorf("UserID = %d", row.UserID)
	}
}

func TestSave_PatchesExistingRow(t *testing.T) {
	gw := newFakeGateway()
	s := newOverlayStore(gw, newFakeAssets(), newFakeFeed())

	row, err := s.FetchOne(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}

	off := false
	w := 45.0
	updated, err := s.Save(context.Background(), SettingsPatch{SoundEnabled: &off, Width: &w})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if updated.ID != row.ID {
		t.Errorf("Save created a new row (%d != %d)", updated.ID, row.ID)
	}
	if updated.SoundEnabled || updated.Width != 45 {
		t.Errorf("updated = %+v", updated)
	}
	if updated.PositionX != DefaultPositionX {
		t.Error("untouched field changed")
	}
}

func TestUploadAsset_DeterministicPathAndURL(t *testing.T) {
	gw := newFakeGateway()
	assets := newFakeAssets()
	s := newOverlayStore(gw, assets, newFakeFeed())

	url, err := s.UploadAsset(context.Background(), AssetKindSound, SlotIncrement, "ding.mp3", strings.NewReader("audio"))
	if err != nil {
		t.Fatalf("UploadAsset: %v", err)
	}
	if url != "/static/assets/1/increment_sound.mp3" {
		t.Errorf("url = %q", url)
	}
	if _, ok := assets.objects["1/increment_sound.mp3"]; !ok {
		t.Errorf("object not stored, have %v", assets.objects)
	}

	row := s.Current()
	if row.SoundType.IncrementURL == nil || *row.SoundType.IncrementURL != url {
		t.Errorf("IncrementURL = %v, want %q", row.SoundType.IncrementURL, url)
	}

	// Re-uploading the same slot writes the same object path.
	if _, err := s.UploadAsset(context.Background(), AssetKindSound, SlotIncrement, "other.mp3", strings.NewReader("v2")); err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	if len(assets.objects) != 1 {
		t.Errorf("objects = %v, want a single overwritten entry", assets.objects)
	}
}

func TestUploadAsset_RejectsUnknownKindOrSlot(t *testing.T) {
	s := newOverlayStore(newFakeGateway(), newFakeAssets(), newFakeFeed())

	if _, err := s.UploadAsset(context.Background(), "video", SlotIncrement, "x.mp4", strings.NewReader("")); !errors.Is(err, ErrInvalidAsset) {
		t.Errorf("kind: err = %v, want ErrInvalidAsset", err)
	}
	if _, err := s.UploadAsset(context.Background(), AssetKindSound, "jump", "x.mp3", strings.NewReader("")); !errors.Is(err, ErrInvalidAsset) {
		t.Errorf("slot: err = %v, want ErrInvalidAsset", err)
	}
}

func TestDeleteAsset_ClearsURLAndRemovesBlob(t *testing.T) {
	gw := newFakeGateway()
	assets := newFakeAssets()
	s := newOverlayStore(gw, assets, newFakeFeed())

	if _, err := s.UploadAsset(context.Background(), AssetKindConfetti, SlotReset, "burst.json", strings.NewReader("{}")); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteAsset(context.Background(), AssetKindConfetti, SlotReset); err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	if row := s.Current(); row.ConfettiType.ResetURL != nil {
		t.Errorf("ResetURL = %v, want nil", *row.ConfettiType.ResetURL)
	}
	if len(assets.objects) != 0 {
		t.Errorf("objects = %v, want blob removed", assets.objects)
	}
}

func TestResetToDefaults_OverwritesExistingRow(t *testing.T) {
	gw := newFakeGateway()
	s := newOverlayStore(gw, newFakeAssets(), newFakeFeed())

	x := 99.0
	off := false
	if _, err := s.Save(context.Background(), SettingsPatch{PositionX: &x, ConfettiEnabled: &off}); err != nil {
		t.Fatal(err)
	}
	before := s.Current()

	row, err := s.ResetToDefaults(context.Background(), nil)
	if err != nil {
		t.Fatalf("ResetToDefaults: %v", err)
	}
	if row.ID != before.ID {
		t.Errorf("reset created a new row (%d != %d)", row.ID, before.ID)
	}
	if row.PositionX != DefaultPositionX || !row.ConfettiEnabled {
		t.Errorf("reset row = %+v", row)
	}
}

func TestSubscribe_ReResolvesOnSettingsEvents(t *testing.T) {
	gw := newFakeGateway()
	feed := newFakeFeed()
	s := newOverlayStore(gw, newFakeAssets(), feed)
	cancel := s.Subscribe()
	defer cancel()

	if s.Current() != nil {
		t.Fatal("Current should be nil before any resolution")
	}

	row := models.OverlaySettings{UserID: 1, PositionX: 33}
	if err := gw.InsertSettings(context.Background(), &row); err != nil {
		t.Fatal(err)
	}
	feed.emit(gateway.Event{Table: gateway.TableOverlaySettings, Action: gateway.ActionInsert, ID: row.ID, UserID: 1})

	got := s.Current()
	if got == nil || got.PositionX != 33 {
		t.Fatalf("Current = %+v, want the inserted row", got)
	}
}
