package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/azure/mentions-monitor/internal/models"
)

// GormStore implements Store on top of gorm (Postgres in production, SQLite for local runs)
type GormStore struct {
	db *gorm.DB
}

// Ensure GormStore implements Store
var _ Store = (*GormStore)(nil)

// Open connects to the database for the given driver and migrates the schema
func Open(driver, dsn string) (*GormStore, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := NewGormStore(db)
	if err := s.Migrate(); err != nil {
		return nil, err
	}

	logrus.Infof("Connected to %s store", driver)
	return s, nil
}

// NewGormStore wraps an existing gorm connection
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates or updates the tables and unique indexes
func (s *GormStore) Migrate() error {
	err := s.db.AutoMigrate(
		&models.MonitoringProfile{},
		&models.DataSource{},
		&models.RawContent{},
		&models.Insight{},
		&models.Alert{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto migration failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStore, err)
}

func (s *GormStore) first(ctx context.Context, dest any, entity, query string, args ...any) error {
	err := s.db.WithContext(ctx).Where(query, args...).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NotFoundError(entity, fmt.Sprint(args...))
	}
	if err != nil {
		return storeErr("get "+entity, err)
	}
	return nil
}

func (s *GormStore) CreateProfile(ctx context.Context, profile *models.MonitoringProfile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(profile).Error; err != nil {
		return storeErr("create profile", err)
	}
	return nil
}

func (s *GormStore) GetProfile(ctx context.Context, id string) (*models.MonitoringProfile, error) {
	var profile models.MonitoringProfile
	if err := s.first(ctx, &profile, "profile", "id = ?", id); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (s *GormStore) ListDueProfiles(ctx context.Context, now time.Time) ([]models.MonitoringProfile, error) {
	var profiles []models.MonitoringProfile
	err := s.db.WithContext(ctx).
		Where("next_run_at <= ?", now.UTC()).
		Order("next_run_at ASC").
		Find(&profiles).Error
	if err != nil {
		return nil, storeErr("list due profiles", err)
	}
	return profiles, nil
}

func (s *GormStore) UpdateProfileSchedule(ctx context.Context, id string, lastRunAt, nextRunAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.MonitoringProfile{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_run_at": lastRunAt.UTC(),
			"next_run_at": nextRunAt.UTC(),
		})
	if res.Error != nil {
		return storeErr("update profile schedule", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFoundError("profile", id)
	}
	return nil
}

func (s *GormStore) CreateSource(ctx context.Context, source *models.DataSource) (bool, error) {
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	source.URLKey = URLKey(source.URL)

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(source)
	if res.Error != nil {
		return false, storeErr("create source", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) GetSource(ctx context.Context, id string) (*models.DataSource, error) {
	var source models.DataSource
	if err := s.first(ctx, &source, "source", "id = ?", id); err != nil {
		return nil, err
	}
	return &source, nil
}

func (s *GormStore) ListSourceURLs(ctx context.Context, profileID string) ([]string, error) {
	var urls []string
	err := s.db.WithContext(ctx).
		Model(&models.DataSource{}).
		Where("profile_id = ?", profileID).
		Pluck("url", &urls).Error
	if err != nil {
		return nil, storeErr("list source urls", err)
	}
	return urls, nil
}

func (s *GormStore) ListDueSources(ctx context.Context, profileID string, now time.Time) ([]models.DataSource, error) {
	var sources []models.DataSource
	err := s.db.WithContext(ctx).
		Where("profile_id = ? AND enabled = ? AND next_scrape_at <= ?", profileID, true, now.UTC()).
		Order("next_scrape_at ASC").
		Find(&sources).Error
	if err != nil {
		return nil, storeErr("list due sources", err)
	}
	return sources, nil
}

func (s *GormStore) UpdateScrapeSchedule(ctx context.Context, id string, lastScrapedAt, nextScrapeAt time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.DataSource{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_scraped_at": lastScrapedAt.UTC(),
			"next_scrape_at":  nextScrapeAt.UTC(),
		})
	if res.Error != nil {
		return storeErr("update scrape schedule", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFoundError("source", id)
	}
	return nil
}

func (s *GormStore) GetContent(ctx context.Context, id string) (*models.RawContent, error) {
	var content models.RawContent
	if err := s.first(ctx, &content, "content", "id = ?", id); err != nil {
		return nil, err
	}
	return &content, nil
}

func (s *GormStore) FindContentByHash(ctx context.Context, sourceID, contentHash string) (*models.RawContent, error) {
	var content models.RawContent
	err := s.db.WithContext(ctx).
		Where("source_id = ? AND content_hash = ?", sourceID, contentHash).
		First(&content).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NotFoundError("content", sourceID+"/"+contentHash)
	}
	if err != nil {
		return nil, storeErr("find content by hash", err)
	}
	return &content, nil
}

func (s *GormStore) InsertContent(ctx context.Context, content *models.RawContent) (bool, error) {
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(content)
	if res.Error != nil {
		return false, storeErr("insert content", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) MarkProcessed(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).
		Model(&models.RawContent{}).
		Where("id = ?", id).
		Update("ai_processed", true)
	if res.Error != nil {
		return storeErr("mark content processed", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NotFoundError("content", id)
	}
	return nil
}

func (s *GormStore) CreateInsight(ctx context.Context, insight *models.Insight) (bool, error) {
	if insight.ID == "" {
		insight.ID = uuid.NewString()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(insight)
	if res.Error != nil {
		return false, storeErr("create insight", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) GetInsight(ctx context.Context, id string) (*models.Insight, error) {
	var insight models.Insight
	if err := s.first(ctx, &insight, "insight", "id = ?", id); err != nil {
		return nil, err
	}
	return &insight, nil
}

func (s *GormStore) GetInsightByContent(ctx context.Context, rawContentID string) (*models.Insight, error) {
	var insight models.Insight
	if err := s.first(ctx, &insight, "insight", "raw_content_id = ?", rawContentID); err != nil {
		return nil, err
	}
	return &insight, nil
}

func (s *GormStore) CreateAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(alert)
	if res.Error != nil {
		return false, storeErr("create alert", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) GetAlertByInsight(ctx context.Context, insightID string) (*models.Alert, error) {
	var alert models.Alert
	if err := s.first(ctx, &alert, "alert", "insight_id = ?", insightID); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *GormStore) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return storeErr("create notification", err)
	}
	return nil
}

func (s *GormStore) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	return notifications, nil
}

// URLKey is the case-insensitive identity of a source URL within a profile
func URLKey(rawURL string) string {
	return strings.ToLower(strings.TrimSpace(rawURL))
}
