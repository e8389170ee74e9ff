package services

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"sportsblock/internal/models"
)

// AuthService handles account lookup and registration. Signature verification
// against the posting key happens in the wallet-provider gateway (Keychain /
// HiveSigner); by the time a login reaches this service the account is
// already proven.
type AuthService struct {
	db *gorm.DB
}

// NewAuthService creates a new AuthService
func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db}
}

// ProcessHiveLogin finds or creates a user by Hive account name
func (s *AuthService) ProcessHiveLogin(hiveAccount, postingPubkey string) (*models.User, error) {
	var user models.User

	result := s.db.Where("hive_account = ?", hiveAccount).First(&user)

	if result.Error == gorm.ErrRecordNotFound {
		user = models.User{
			HiveAccount:   hiveAccount,
			PostingPubkey: postingPubkey,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		log.Printf("New user created: @%s (ID: %d)", hiveAccount, user.ID)
	} else if result.Error != nil {
		return nil, fmt.Errorf("database error: %w", result.Error)
	} else {
		// Keep the stored key current; accounts rotate posting keys.
		if postingPubkey != "" && user.PostingPubkey != postingPubkey {
			if err := s.db.Model(&user).Update("posting_pubkey", postingPubkey).Error; err != nil {
				log.Printf("Warning: failed to update posting key for @%s: %v", hiveAccount, err)
			}
		}
		log.Printf("User logged in: @%s (ID: %d)", hiveAccount, user.ID)
	}

	return &user, nil
}

// GetUserByID retrieves a user by their ID
func (s *AuthService) GetUserByID(userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}
