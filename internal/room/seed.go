package room

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/zhou-shi/pentama-app/internal/config"
)

type seedFile struct {
	Rooms []Room `yaml:"rooms"`
}

// LoadSeed reads a YAML room list such as:
//
//	rooms:
//	  - name: Ruang Seminar 1
//	    building: Gedung MIPA
//	    capacity: 40
//	    isAvailable: true
func LoadSeed(path string) ([]Room, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read room seed %s", path)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) ([]Room, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse room seed")
	}
	for i, r := range f.Rooms {
		if r.Name == "" || r.Capacity <= 0 {
			return nil, errors.Errorf("room seed entry %d needs a name and a positive capacity", i)
		}
	}
	return f.Rooms, nil
}

// RegisterSeed seeds rooms from the configured YAML file on startup.
func RegisterSeed(lc fx.Lifecycle, cfg *config.AppConfig, repo *RoomRepository, svc *RoomService, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := repo.EnsureIndexes(ctx); err != nil {
				return err
			}
			if cfg.RoomSeedFile == "" {
				return nil
			}
			rooms, err := LoadSeed(cfg.RoomSeedFile)
			if err != nil {
				return err
			}
			n, err := svc.Seed(ctx, rooms)
			if err != nil {
				return err
			}
			logger.Info("rooms seeded", zap.Int("count", n), zap.String("file", cfg.RoomSeedFile))
			return nil
		},
	})
}
