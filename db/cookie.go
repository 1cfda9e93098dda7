package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/habedi/tokenflow/auth"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Cookie is a persisted browser-style cookie.
type Cookie struct {
	Name     string `gorm:"primaryKey"`
	Value    string
	Path     string
	Expires  time.Time `gorm:"index"`
	Secure   bool
	SameSite string
	HTTPOnly bool
	Updated  time.Time `gorm:"autoUpdateTime"`
}

// CookieJar stores cookies in the database. Expired cookies read as absent. It implements
// auth.SecureStorage.
type CookieJar struct{ db *gorm.DB }

// NewCookieJar creates a CookieJar. Accepts *gorm.DB to avoid global access.
func NewCookieJar(db *gorm.DB) *CookieJar {
	return &CookieJar{db: db}
}

func (j *CookieJar) Get(ctx context.Context, name string) (string, error) {
	if j.db == nil {
		return "", fmt.Errorf("cookie jar not initialized")
	}
	var c Cookie
	err := j.db.WithContext(ctx).First(&c, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read cookie %s: %w", name, err)
	}
	if !c.Expires.IsZero() && !time.Now().Before(c.Expires) {
		return "", nil
	}
	return c.Value, nil
}

func (j *CookieJar) Set(ctx context.Context, name, value string, opts auth.CookieOptions) error {
	if j.db == nil {
		return fmt.Errorf("cookie jar not initialized")
	}
	c := Cookie{
		Name:     name,
		Value:    value,
		Path:     opts.Path,
		Expires:  opts.Expires,
		Secure:   opts.Secure,
		SameSite: opts.SameSite,
		HTTPOnly: opts.HTTPOnly,
	}
	err := j.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "path", "expires", "secure", "same_site", "http_only", "updated"}),
	}).Create(&c).Error
	if err != nil {
		return fmt.Errorf("failed to store cookie %s: %w", name, err)
	}
	return nil
}

func (j *CookieJar) Remove(ctx context.Context, name string) error {
	if j.db == nil {
		return fmt.Errorf("cookie jar not initialized")
	}
	if err := j.db.WithContext(ctx).Delete(&Cookie{}, "name = ?", name).Error; err != nil {
		return fmt.Errorf("failed to remove cookie %s: %w", name, err)
	}
	return nil
}

// List returns every stored cookie, expired ones included.
func (j *CookieJar) List(ctx context.Context) ([]Cookie, error) {
	if j.db == nil {
		return nil, fmt.Errorf("cookie jar not initialized")
	}
	var cookies []Cookie
	if err := j.db.WithContext(ctx).Order("name").Find(&cookies).Error; err != nil {
		return nil, err
	}
	return cookies, nil
}
