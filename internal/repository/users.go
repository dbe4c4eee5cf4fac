package repository

import (
	"context"
	"time"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/astrogeo/backend/internal/models"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository
type UserRepositoryImpl struct {
	base
}

func NewUserRepository(db *gorm.DB) models.UserRepository {
	return &UserRepositoryImpl{base: base{db: db, entity: models.TableUsers}}
}

func (r *UserRepositoryImpl) Create(ctx context.Context, username, email, credentialHash string, fullName *string) (*models.User, error) {
	if err := models.ValidateNewUser(username, email, credentialHash); err != nil {
		return nil, r.fail(err)
	}

	user := &models.User{
		Username:       username,
		Email:          email,
		HashedPassword: credentialHash,
		FullName:       fullName,
		IsActive:       true,
	}
	if err := r.conn(ctx).Create(user).Error; err != nil {
		return nil, r.fail(err)
	}
	return user, nil
}

func (r *UserRepositoryImpl) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return getByID[models.User](ctx, r.base, id)
}

func (r *UserRepositoryImpl) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return findOne[models.User](r.base, r.conn(ctx).Where("username = ?", username))
}

func (r *UserRepositoryImpl) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](r.base, r.conn(ctx).Where("email = ?", email))
}

func (r *UserRepositoryImpl) ListActive(ctx context.Context) ([]models.User, error) {
	users := make([]models.User, 0)
	err := r.conn(ctx).Where("is_active = ?", true).
		Order("id").
		Find(&users).Error
	if err != nil {
		return nil, r.fail(err)
	}
	return users, nil
}

// TouchLastLogin stamps last_login. Like every mutation it also refreshes
// updated_at.
func (r *UserRepositoryImpl) TouchLastLogin(ctx context.Context, id uint, at time.Time) error {
	res := r.conn(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_login": at,
			"updated_at": r.now(),
		})
	if res.Error != nil {
		return r.fail(res.Error)
	}
	if res.RowsAffected == 0 {
		return r.fail(errs.NotFound(r.entity, id))
	}
	return nil
}

// Update applies the non-nil fields of UserUpdate. updated_at is refreshed
// even when fields is empty.
func (r *UserRepositoryImpl) Update(ctx context.Context, id uint, fields models.UserUpdate) (*models.User, error) {
	if err := fields.Validate(); err != nil {
		return nil, r.fail(err)
	}

	changes := map[string]interface{}{
		"updated_at": r.now(),
	}
	if fields.Username != nil {
		changes["username"] = *fields.Username
	}
	if fields.Email != nil {
		changes["email"] = *fields.Email
	}
	if fields.HashedPassword != nil {
		changes["hashed_password"] = *fields.HashedPassword
	}
	if fields.FullName != nil {
		changes["full_name"] = *fields.FullName
	}
	if fields.IsActive != nil {
		changes["is_active"] = *fields.IsActive
	}
	if fields.IsAdmin != nil {
		changes["is_admin"] = *fields.IsAdmin
	}

	var user models.User
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errs.NotFound(r.entity, id)
		}
		return tx.First(&user, id).Error
	})
	if err != nil {
		return nil, r.fail(err)
	}
	return &user, nil
}

// Deactivate is the soft delete: the row stays, is_active goes false.
func (r *UserRepositoryImpl) Deactivate(ctx context.Context, id uint) (*models.User, error) {
	inactive := false
	return r.Update(ctx, id, models.UserUpdate{IsActive: &inactive})
}
