// internal/source/postgres_store.go
// PostgreSQL 收件人資料表 (gorm)

package source

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bulk-mailer/internal/config"
	"bulk-mailer/internal/models"
)

// PostgresStore PostgreSQL 資料表存取
type PostgresStore struct {
	db    *gorm.DB
	table string
}

// OpenDatabase 初始化資料庫連接
func OpenDatabase(cfg *config.Config) (*gorm.DB, error) {
	gormLogger := logger.Default.LogMode(logger.Warn)
	if cfg.Env == "production" {
		gormLogger = logger.Default.LogMode(logger.Silent)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 設定連接池 (單一執行緒，不需要太多連線)
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

// NewPostgresStore 建立資料表存取
func NewPostgresStore(db *gorm.DB, table string) *PostgresStore {
	return &PostgresStore{db: db, table: table}
}

// Name 回傳資料表名稱
func (s *PostgresStore) Name() string {
	return "postgres:" + s.table
}

// Fetch 取得未發送的資料列
func (s *PostgresStore) Fetch(ctx context.Context, after string, limit int) ([]models.Recipient, error) {
	query := s.db.WithContext(ctx).
		Table(s.table).
		Select("id", "email").
		Where("is_sent = ?", false)

	if after != "" {
		afterID, err := strconv.ParseInt(after, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid cursor %q: %w", after, err)
		}
		query = query.Where("id > ?", afterID)
	}

	var rows []models.RecipientRecord
	if err := query.Order("id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch recipients: %w", err)
	}

	recipients := make([]models.Recipient, 0, len(rows))
	for _, row := range rows {
		recipients = append(recipients, models.Recipient{
			ID:    strconv.FormatInt(row.ID, 10),
			Email: row.Email,
		})
	}
	return recipients, nil
}

// MarkSent 設定 is_sent=true
func (s *PostgresStore) MarkSent(ctx context.Context, id string) error {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid recipient id %q: %w", id, err)
	}

	result := s.db.WithContext(ctx).
		Table(s.table).
		Where("id = ?", rowID).
		Update("is_sent", true)
	if result.Error != nil {
		return fmt.Errorf("failed to mark recipient %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("recipient %s not found", id)
	}
	return nil
}
