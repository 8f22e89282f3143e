package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresTokenIndex stores a SHA-256 digest of every issued access token.
// The raw token never reaches the database.
type PostgresTokenIndex struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgresTokenIndex(db *gorm.DB) *PostgresTokenIndex {
	return &PostgresTokenIndex{db: db, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (p *PostgresTokenIndex) WithClock(now func() time.Time) *PostgresTokenIndex {
	p.now = now
	return p
}

func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func (p *PostgresTokenIndex) Record(ctx context.Context, userID int64, token string, expiresAt time.Time) error {
	row := model.AccessToken{
		TokenHash: HashToken(token),
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	}
	res := p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_hash"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "expires_at"}),
	}).Create(&row)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "RecordAccessToken")
	}
	return nil
}

func (p *PostgresTokenIndex) LookupRole(ctx context.Context, token string) (model.Role, error) {
	var row struct {
		Role model.Role
	}
	res := p.db.WithContext(ctx).
		Table("access_tokens AS t").
		Select("u.role").
		Joins("JOIN users u ON u.id = t.user_id").
		Where("t.token_hash = ? AND t.expires_at > ?", HashToken(token), p.now().UTC()).
		Limit(1).
		Scan(&row)
	if err := res.Error; err != nil {
		return "", customErrors.WrapInternal(err, "LookupRole")
	}
	if res.RowsAffected == 0 {
		return "", customErrors.ErrNotFound
	}
	return row.Role, nil
}

func (p *PostgresTokenIndex) PurgeExpired(ctx context.Context, before time.Time) (int64, error) {
	res := p.db.WithContext(ctx).Where("expires_at <= ?", before.UTC()).Delete(&model.AccessToken{})
	if err := res.Error; err != nil {
		return 0, customErrors.WrapInternal(err, "PurgeExpired")
	}
	return res.RowsAffected, nil
}
