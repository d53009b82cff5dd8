package main

import (
	"time"

	"github.com/farzanshibu/challenge-synergy-hub/config"
	"github.com/farzanshibu/challenge-synergy-hub/gateway"
	"github.com/farzanshibu/challenge-synergy-hub/models"
	"github.com/farzanshibu/challenge-synergy-hub/routes"
	"github.com/farzanshibu/challenge-synergy-hub/store"
	"github.com/farzanshibu/challenge-synergy-hub/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	db := config.InitDatabase(&models.User{}, &models.Challenge{}, &models.OverlaySettings{})

	feed := gateway.NewFeed(utils.GetRedis(), cfg.FeedChannel, utils.Sugar)
	defer feed.Close()

	gw := gateway.NewStore(db, feed)
	assets := gateway.NewDiskAssets(cfg.AssetDir, cfg.AssetBaseURL)

	stores := store.NewManager(store.Deps{
		Challenges: gw,
		Settings:   gw,
		Assets:     assets,
		Feed:       feed,
		Log:        utils.Sugar,
	})
	defer stores.Close()

	r := routes.SetupRouter(db, stores, feed)

	// Remove orphaned asset files in the background (best-effort)
	utils.StartAssetSweeper(db, time.Hour)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
