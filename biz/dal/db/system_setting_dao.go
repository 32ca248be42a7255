package db

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sorathiyaom089/Student-Management-System/biz/dal/model"
)

// SystemSettingDAO wraps basic CRUD operations for system settings.
type SystemSettingDAO struct{}

func NewSystemSettingDAO() *SystemSettingDAO { return &SystemSettingDAO{} }

// Migrate creates or updates the system_settings table.
func (dao *SystemSettingDAO) Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(&model.SystemSetting{})
}

// Upsert inserts the setting or overwrites the value of an existing key.
func (dao *SystemSettingDAO) Upsert(ctx context.Context, db *gorm.DB, key, value string) error {
	if key == "" {
		return errors.New("setting_key is required")
	}
	entity := &model.SystemSetting{Key: key, Value: value}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "setting_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"setting_value", "updated_at"}),
		}).
		Create(entity).Error
}

// GetByKey fetches a single setting. It returns gorm.ErrRecordNotFound when
// the key is absent.
func (dao *SystemSettingDAO) GetByKey(ctx context.Context, db *gorm.DB, key string) (*model.SystemSetting, error) {
	var entity model.SystemSetting
	if err := db.WithContext(ctx).
		Where("setting_key = ?", key).
		First(&entity).Error; err != nil {
		return nil, err
	}
	return &entity, nil
}

// List returns all settings ordered by key.
func (dao *SystemSettingDAO) List(ctx context.Context, db *gorm.DB) ([]model.SystemSetting, error) {
	var entities []model.SystemSetting
	if err := db.WithContext(ctx).
		Order("setting_key ASC").
		Find(&entities).Error; err != nil {
		return nil, err
	}
	return entities, nil
}

// ExistsByKey checks if a setting with the given key exists.
func (dao *SystemSettingDAO) ExistsByKey(ctx context.Context, db *gorm.DB, key string) (bool, error) {
	var count int64
	if err := db.WithContext(ctx).
		Model(&model.SystemSetting{}).
		Where("setting_key = ?", key).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
