// Package authz holds the investor whitelist and the fund-admin
// registry. The engines consume the Provider interface; the gorm-backed
// Database implements it.
package authz

import (
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/ksred/fundta-api/internal/types"
	"github.com/ksred/fundta-api/pkg/response"
)

// Provider is the authorization surface consumed by the batch and
// recovery operations.
type Provider interface {
	IsAdmin(caller string) (bool, error)
	IsAccountAuthorized(account string) (bool, error)
	// RemoveAccountPostRecovery retires a recovered account from the
	// whitelist once its balance has moved to the replacement account.
	RemoveAccountPostRecovery(from, to string) error
}

// AuthorizedAccount is a whitelisted investor account.
type AuthorizedAccount struct {
	gorm.Model `json:"-"`
	Account    string    `gorm:"uniqueIndex" json:"account"`
	CreatedAt  time.Time `json:"created_at"`
}

// AdminKey is an API client permitted to run batch and recovery
// operations.
type AdminKey struct {
	gorm.Model `json:"-"`
	ClientID   string    `gorm:"uniqueIndex" json:"client_id"`
	CreatedAt  time.Time `json:"created_at"`
}

var _ Provider = (*Database)(nil)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) IsAdmin(caller string) (bool, error) {
	var key AdminKey
	if err := d.db.Where("client_id = ?", caller).First(&key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch admin key: %w", err)
	}
	return true, nil
}

func (d *Database) IsAccountAuthorized(account string) (bool, error) {
	var acct AuthorizedAccount
	if err := d.db.Where("account = ?", account).First(&acct).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to fetch authorized account: %w", err)
	}
	return true, nil
}

func (d *Database) RemoveAccountPostRecovery(from, to string) error {
	result := d.db.Where("account = ?", from).Delete(&AuthorizedAccount{})
	if result.Error != nil {
		return fmt.Errorf("failed to retire recovered account: %w", result.Error)
	}

	log.Info().
		Str("from", from).
		Str("to", to).
		Str("service", "authz").
		Msg("retired recovered account from whitelist")
	return nil
}

// AuthorizeAccount adds an account to the investor whitelist.
func (d *Database) AuthorizeAccount(account string) error {
	acct := AuthorizedAccount{Account: account, CreatedAt: time.Now()}
	if err := d.db.Where("account = ?", account).FirstOrCreate(&acct).Error; err != nil {
		return fmt.Errorf("failed to authorize account: %w", err)
	}
	return nil
}

// RegisterAdmin grants batch-operation rights to an API client.
func (d *Database) RegisterAdmin(clientID string) error {
	key := AdminKey{ClientID: clientID, CreatedAt: time.Now()}
	if err := d.db.Where("client_id = ?", clientID).FirstOrCreate(&key).Error; err != nil {
		return fmt.Errorf("failed to register admin key: %w", err)
	}
	return nil
}

// RequireAdmin resolves the caller against the admin registry, failing
// with ErrAccountNotAuthorized for everyone else.
func (d *Database) RequireAdmin(caller string) error {
	admin, err := d.IsAdmin(caller)
	if err != nil {
		return err
	}
	if !admin {
		return fmt.Errorf("caller %s: %w", caller, types.ErrAccountNotAuthorized)
	}
	return nil
}

// GinHandlers contains HTTP handlers for whitelist administration
type GinHandlers struct {
	db *gorm.DB
}

func NewGinHandlers(db *gorm.DB) *GinHandlers {
	return &GinHandlers{db: db}
}

// AuthorizeAccountHandler handles POST requests to whitelist an account
// Requires internal authentication
func (h *GinHandlers) AuthorizeAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			Account string `json:"account" binding:"required"`
		}
		if err := c.ShouldBindJSON(&request); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		authz := NewDatabase(h.db)
		if err := authz.RequireAdmin(c.GetString("clientID")); err != nil {
			response.Handle(c, nil, err)
			return
		}
		if err := authz.AuthorizeAccount(request.Account); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, gin.H{"account": request.Account, "authorized": true})
	}
}
