package utils

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/farzanshibu/challenge-synergy-hub/config"
	"github.com/farzanshibu/challenge-synergy-hub/models"
)

// StartAssetSweeper launches a background goroutine that periodically removes
// files from the asset directory no settings row references anymore, e.g.
// leftovers from a slot whose extension changed on re-upload. Best-effort.
func StartAssetSweeper(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			sweepAssets(db, config.Get().AssetDir)
		}
	}()
}

func sweepAssets(db *gorm.DB, assetDir string) {
	var rows []models.OverlaySettings
	if err := db.Find(&rows).Error; err != nil {
		if Sugar != nil {
			Sugar.Warnw("asset sweeper query failed", "err", err)
		}
		return
	}

	// Keyed by "<user dir>/<file>", the tail of every public asset URL.
	referenced := map[string]bool{}
	for _, row := range rows {
		for _, links := range []models.AssetLinks{row.SoundType, row.ConfettiType} {
			for _, url := range []*string{links.IncrementURL, links.DecrementURL, links.ResetURL} {
				if url == nil || *url == "" {
					continue
				}
				clean := filepath.ToSlash(*url)
				dir := filepath.Base(filepath.Dir(clean))
				referenced[dir+"/"+filepath.Base(clean)] = true
			}
		}
	}

	root, err := filepath.Abs(assetDir)
	if err != nil {
		return
	}
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		// Skip in-flight uploads written under temporary names
		if strings.HasPrefix(filepath.Base(path), ".") {
			return nil
		}
		if info.ModTime().After(time.Now().Add(-time.Hour)) {
			return nil
		}
		key := filepath.Base(filepath.Dir(path)) + "/" + filepath.Base(path)
		if !referenced[key] {
			if rmErr := os.Remove(path); rmErr == nil && Sugar != nil {
				Sugar.Infow("asset sweeper removed orphan", "path", path)
			}
		}
		return nil
	})
}
