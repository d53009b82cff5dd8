package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/middleware"
	"github.com/farzanshibu/challenge-synergy-hub/models"
	"github.com/farzanshibu/challenge-synergy-hub/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *store.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Challenge{}, &models.OverlaySettings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	feed := gateway.NewFeed(nil, "test", nil)
	t.Cleanup(feed.Close)
	gw := gateway.NewStore(db, feed)

	stores := store.NewManager(store.Deps{
		Challenges: gw,
		Settings:   gw,
		Feed:       feed,
	})
	t.Cleanup(stores.Close)

	r := gin.New()
	r.Use(func(ctx *gin.Context) { ctx.Set(middleware.ContextUserIDKey, uint(1)) })

	ctl := NewChallengeController(stores)
	r.POST("/challenges/:id/increment", ctl.Increment)
	r.POST("/challenges/:id/reset", ctl.Reset)
	return r, stores
}

func uintStr(n uint) string {
	return strconv.FormatUint(uint64(n), 10)
}

type counterEnvelope struct {
	Code int    `json:"code"`
	Msg  string `json:"message"`
	Data struct {
		Challenge models.Challenge `json:"challenge"`
		Applied   bool             `json:"applied"`
		Notice    string           `json:"notice"`
	} `json:"data"`
}

func postCounter(t *testing.T, r *gin.Engine, path string) counterEnvelope {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("POST %s: status = %d, body = %s", path, w.Code, w.Body.String())
	}
	var env counterEnvelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestResetEndpoint_ZeroesCounterInResponse(t *testing.T) {
	r, stores := newTestRouter(t)

	ch, err := stores.Challenges(1).Add(context.Background(), store.ChallengeInput{
		Title: "subs", MaxValue: 100, CurrentValue: 42, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed challenge: %v", err)
	}

	env := postCounter(t, r, "/challenges/"+uintStr(ch.ID)+"/reset")
	if env.Code != 0 {
		t.Fatalf("code = %d, want 0", env.Code)
	}
	if !env.Data.Applied {
		t.Error("reset not applied")
	}
	if env.Data.Challenge.ID != ch.ID || env.Data.Challenge.CurrentValue != 0 {
		t.Errorf("challenge = {id %d, current %d}, want {id %d, current 0}",
			env.Data.Challenge.ID, env.Data.Challenge.CurrentValue, ch.ID)
	}
}

func TestIncrementEndpoint_NoticeAtMax(t *testing.T) {
	r, stores := newTestRouter(t)

	ch, err := stores.Challenges(1).Add(context.Background(), store.ChallengeInput{
		Title: "donos", MaxValue: 5, CurrentValue: 5, IsActive: true,
	})
	if err != nil {
		t.Fatalf("seed challenge: %v", err)
	}

	env := postCounter(t, r, "/challenges/"+uintStr(ch.ID)+"/increment")
	if env.Data.Applied {
		t.Error("increment at max must not apply")
	}
	if env.Data.Notice == "" {
		t.Error("expected a notice for a refused increment")
	}
	if env.Data.Challenge.CurrentValue != 5 {
		t.Errorf("current = %d, want 5", env.Data.Challenge.CurrentValue)
	}
}

func TestCounterEndpoint_UnknownID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/challenges/9999/reset", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}
