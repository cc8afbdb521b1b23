package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	catalogdomain "github.com/smallbiznis/carepoints/internal/catalog/domain"
	catalogrepository "github.com/smallbiznis/carepoints/internal/catalog/repository"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type Catalog struct {
	Activities   []ActivitySeed    `yaml:"activities"`
	Achievements []AchievementSeed `yaml:"achievements"`
	Rewards      []RewardSeed      `yaml:"rewards"`
}

type ActivitySeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	PointsValue int64  `yaml:"points_value"`
	Frequency   string `yaml:"frequency"`
	Inactive    bool   `yaml:"inactive"`
}

type AchievementSeed struct {
	Name           string `yaml:"name"`
	Description    string `yaml:"description"`
	Level          int    `yaml:"level"`
	PointsRequired int64  `yaml:"points_required"`
	Category       string `yaml:"category"`
	Inactive       bool   `yaml:"inactive"`
}

type RewardSeed struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	PointsCost  int64  `yaml:"points_cost"`
	Inventory   *int64 `yaml:"inventory"`
	Inactive    bool   `yaml:"inactive"`
}

// Counts reports how many catalog rows a seed run inserted.
type Counts struct {
	Activities   int
	Achievements int
	Rewards      int
}

// LoadCatalog reads a catalog file, or the bundled default when path is empty.
func LoadCatalog(path string) (Catalog, error) {
	raw := defaultCatalog
	if path = strings.TrimSpace(path); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Catalog{}, fmt.Errorf("read catalog: %w", err)
		}
		raw = data
	}

	var catalog Catalog
	if err := yaml.Unmarshal(raw, &catalog); err != nil {
		return Catalog{}, fmt.Errorf("parse catalog: %w", err)
	}
	if err := catalog.validate(); err != nil {
		return Catalog{}, err
	}
	return catalog, nil
}

func (c Catalog) validate() error {
	for _, item := range c.Activities {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("activity: %w", catalogdomain.ErrInvalidName)
		}
		if item.PointsValue <= 0 {
			return fmt.Errorf("activity %q: %w", item.Name, catalogdomain.ErrInvalidPoints)
		}
		if !catalogdomain.ActivityCategory(item.Category).Valid() {
			return fmt.Errorf("activity %q: %w", item.Name, catalogdomain.ErrInvalidCategory)
		}
		if !catalogdomain.Frequency(item.Frequency).Valid() {
			return fmt.Errorf("activity %q: %w", item.Name, catalogdomain.ErrInvalidFrequency)
		}
	}
	for _, item := range c.Achievements {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("achievement: %w", catalogdomain.ErrInvalidName)
		}
		if item.Level < catalogdomain.MinAchievementLevel || item.Level > catalogdomain.MaxAchievementLevel {
			return fmt.Errorf("achievement %q: %w", item.Name, catalogdomain.ErrInvalidLevel)
		}
		if item.PointsRequired < 0 {
			return fmt.Errorf("achievement %q: %w", item.Name, catalogdomain.ErrInvalidPoints)
		}
		if !catalogdomain.AchievementCategory(item.Category).Valid() {
			return fmt.Errorf("achievement %q: %w", item.Name, catalogdomain.ErrInvalidCategory)
		}
	}
	for _, item := range c.Rewards {
		if strings.TrimSpace(item.Name) == "" {
			return fmt.Errorf("reward: %w", catalogdomain.ErrInvalidName)
		}
		if item.PointsCost <= 0 {
			return fmt.Errorf("reward %q: %w", item.Name, catalogdomain.ErrInvalidPoints)
		}
		if item.Inventory != nil && *item.Inventory < 0 {
			return fmt.Errorf("reward %q: %w", item.Name, catalogdomain.ErrInvalidInventory)
		}
		if !catalogdomain.RewardCategory(item.Category).Valid() {
			return fmt.Errorf("reward %q: %w", item.Name, catalogdomain.ErrInvalidCategory)
		}
	}
	return nil
}

// EnsureCatalog inserts catalog entries whose names are not yet present.
// Existing rows are left untouched so admin edits survive restarts.
func EnsureCatalog(ctx context.Context, db *gorm.DB, path string) (Counts, error) {
	if db == nil {
		return Counts{}, errors.New("seed database handle is required")
	}
	catalog, err := LoadCatalog(path)
	if err != nil {
		return Counts{}, err
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return Counts{}, err
	}
	repo := catalogrepository.Provide()
	now := time.Now().UTC()

	var counts Counts
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counts = Counts{}
		for _, item := range catalog.Activities {
			exists, err := nameExists(ctx, tx, "activities", item.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := repo.InsertActivity(ctx, tx, &catalogdomain.Activity{
				ID:          node.Generate(),
				Name:        strings.TrimSpace(item.Name),
				Description: optional(item.Description),
				Category:    catalogdomain.ActivityCategory(item.Category),
				PointsValue: item.PointsValue,
				Frequency:   catalogdomain.Frequency(item.Frequency),
				Active:      !item.Inactive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
			counts.Activities++
		}

		for _, item := range catalog.Achievements {
			exists, err := nameExists(ctx, tx, "achievements", item.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := repo.InsertAchievement(ctx, tx, &catalogdomain.Achievement{
				ID:             node.Generate(),
				Name:           strings.TrimSpace(item.Name),
				Description:    optional(item.Description),
				Level:          item.Level,
				PointsRequired: item.PointsRequired,
				Category:       catalogdomain.AchievementCategory(item.Category),
				Active:         !item.Inactive,
				CreatedAt:      now,
				UpdatedAt:      now,
			}); err != nil {
				return err
			}
			counts.Achievements++
		}

		for _, item := range catalog.Rewards {
			exists, err := nameExists(ctx, tx, "rewards", item.Name)
			if err != nil {
				return err
			}
			if exists {
				continue
			}
			if err := repo.InsertReward(ctx, tx, &catalogdomain.Reward{
				ID:          node.Generate(),
				Name:        strings.TrimSpace(item.Name),
				Description: optional(item.Description),
				Category:    catalogdomain.RewardCategory(item.Category),
				PointsCost:  item.PointsCost,
				Inventory:   item.Inventory,
				Active:      !item.Inactive,
				CreatedAt:   now,
				UpdatedAt:   now,
			}); err != nil {
				return err
			}
			counts.Rewards++
		}
		return nil
	})
	return counts, err
}

func nameExists(ctx context.Context, tx *gorm.DB, table string, name string) (bool, error) {
	var count int64
	if err := tx.WithContext(ctx).Table(table).Where("name = ?", strings.TrimSpace(name)).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
