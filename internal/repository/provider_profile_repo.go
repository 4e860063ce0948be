package repository

import (
	"context"

	"github.com/majstori/marketplace-chat/pkg/cache"
	"github.com/majstori/marketplace-chat/pkg/logger"
	"gorm.io/gorm"
)

// ProviderProfile is the read-only projection of the marketplace provider profile
type ProviderProfile struct {
	UserID       string `gorm:"column:user_id;primaryKey;type:varchar(64)"`
	BusinessName string `gorm:"column:business_name;type:varchar(255)"`
	DisplayName  string `gorm:"column:display_name;type:varchar(255)"`
}

func (ProviderProfile) TableName() string { return "provider_profiles" }

// Name returns the label shown next to the provider in conversation lists
func (p *ProviderProfile) Name() string {
	if p.BusinessName != "" {
		return p.BusinessName
	}
	return p.DisplayName
}

// ProviderDirectory resolves provider display names for conversation listings
type ProviderDirectory interface {
	DisplayNames(ctx context.Context, providerIDs []string) (map[string]string, error)
}

type providerProfileRepository struct {
	db    *gorm.DB
	cache cache.Service
}

// NewProviderDirectory creates a ProviderDirectory backed by the provider_profiles table.
// cacheService may be nil.
func NewProviderDirectory(db *gorm.DB, cacheService cache.Service) ProviderDirectory {
	return &providerProfileRepository{db: db, cache: cacheService}
}

func (r *providerProfileRepository) DisplayNames(ctx context.Context, providerIDs []string) (map[string]string, error) {
	names := make(map[string]string, len(providerIDs))
	missing := make([]string, 0, len(providerIDs))
	seen := make(map[string]struct{}, len(providerIDs))

	for _, id := range providerIDs {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		if r.cache != nil && r.cache.IsAvailable() {
			if name, err := r.cache.GetProviderName(ctx, id); err == nil && name != "" {
				names[id] = name
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return names, nil
	}

	var profiles []ProviderProfile
	if err := r.db.WithContext(ctx).Where("user_id IN ?", missing).Find(&profiles).Error; err != nil {
		return names, err
	}
	for i := range profiles {
		name := profiles[i].Name()
		names[profiles[i].UserID] = name
		if r.cache != nil && r.cache.IsAvailable() && name != "" {
			if err := r.cache.SetProviderName(ctx, profiles[i].UserID, name); err != nil {
				logger.GetLogger().Warn().Err(err).Str("provider_id", profiles[i].UserID).Msg("provider name cache write failed")
			}
		}
	}
	return names, nil
}
