package postgres

import (
	"context"
	"errors"
	"time"

	customErrors "github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/errors"
	"github.com/Miraines/MoonyAndStarry/account-service/internal/domain/auth/model"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type PostgresUserRepo struct {
	db *gorm.DB
}

func NewPostgresUserRepo(db *gorm.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (p *PostgresUserRepo) CreateUser(ctx context.Context, user *model.User) error {
	res := p.db.WithContext(ctx).Create(user)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "CreateUser")
	}
	return nil
}

func (p *PostgresUserRepo) GetUserByID(ctx context.Context, id int64) (model.User, error) {
	return p.first(ctx, "GetUserByID", "id = ?", id)
}

func (p *PostgresUserRepo) GetUserByUUID(ctx context.Context, id uuid.UUID) (model.User, error) {
	return p.first(ctx, "GetUserByUUID", "uuid = ?", id)
}

func (p *PostgresUserRepo) GetUserByIdentifier(ctx context.Context, identifier string) (model.User, error) {
	return p.first(ctx, "GetUserByIdentifier", "username = ? OR lower(email) = lower(?)", identifier, identifier)
}

func (p *PostgresUserRepo) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	var users []model.User
	res := p.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset).Find(&users)
	if err := res.Error; err != nil {
		return nil, customErrors.WrapInternal(err, "ListUsers")
	}
	return users, nil
}

func (p *PostgresUserRepo) UpdateUser(ctx context.Context, id int64, fields map[string]any) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if err := res.Error; err != nil {
		if isUniqueViolation(err) {
			return customErrors.ErrAlreadyExists
		}
		return customErrors.WrapInternal(err, "UpdateUser")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

func (p *PostgresUserRepo) TouchLogin(ctx context.Context, id int64, at time.Time, ip string) error {
	fields := map[string]any{"last_login_at": at}
	if ip != "" {
		fields["last_login_ip"] = ip
	}
	res := p.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "TouchLogin")
	}
	return nil
}

func (p *PostgresUserRepo) SetRole(ctx context.Context, username string, role model.Role) error {
	res := p.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Update("role", role)
	if err := res.Error; err != nil {
		return customErrors.WrapInternal(err, "SetRole")
	}
	if res.RowsAffected == 0 {
		return customErrors.ErrNotFound
	}
	return nil
}

// DeleteUser removes the user and its index rows. The foreign key cascades on
// Postgres; the explicit delete keeps stores without it consistent.
func (p *PostgresUserRepo) DeleteUser(ctx context.Context, id int64) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.AccessToken{}).Error; err != nil {
			return customErrors.WrapInternal(err, "DeleteUser")
		}
		res := tx.Delete(&model.User{}, id)
		if err := res.Error; err != nil {
			return customErrors.WrapInternal(err, "DeleteUser")
		}
		if res.RowsAffected == 0 {
			return customErrors.ErrNotFound
		}
		return nil
	})
}

func (p *PostgresUserRepo) first(ctx context.Context, op, query string, args ...any) (model.User, error) {
	var u model.User
	res := p.db.WithContext(ctx).Where(query, args...).First(&u)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return model.User{}, customErrors.ErrNotFound
	}
	if err := res.Error; err != nil {
		return model.User{}, customErrors.WrapInternal(err, op)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
