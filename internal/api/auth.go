package api

import (
	"context"  // Context for settings reads
	"net/http" // HTTP status codes
	"regexp"   // Regular expressions
	"strings"  // String manipulation

	"referral_system/internal/domain"   // Importing domain models
	"referral_system/internal/referral" // Referral graph placement
	"referral_system/internal/settings" // Tiered settings cache
	"referral_system/internal/store"    // Persistence interfaces
	"referral_system/internal/utils"    // Utility functions

	"github.com/gin-gonic/gin"   // Gin web framework
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// RegisterRequest is the registration payload. Every new user registers
// under a sponsor's referral code.
type RegisterRequest struct {
	Username     string `json:"username" binding:"required"` // Username must be provided
	Password     string `json:"password" binding:"required"` // Password must be provided
	ReferralCode string `json:"referral_code"`               // Sponsor's code, empty for root accounts
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse carries the issued JWT.
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// isValidUsername checks if the username contains only alphanumeric characters
func isValidUsername(username string) bool {
	matched, _ := regexp.MatchString(`^[A-Za-z][A-Za-z0-9]*$`, username) // Must start with a letter
	return matched
}

// isValidPassword checks if the password length is between 8 and 15 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 15
}

// RegisterHandler creates a dormant user under a sponsor and places the
// referral edge immediately (inactive until the registration deposit is
// verified). Registration is gated by the newRegistrations, maintenanceMode
// and maxUsers settings.
func RegisterHandler(users store.UserStore, graph *referral.Graph, cache *settings.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if !isValidUsername(req.Username) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be alphanumeric"})
			return
		}
		if !isValidPassword(req.Password) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-15 characters"})
			return
		}
		ctx := context.Background() // Context for settings reads

		// Registration gates, one batch read.
		gates := cache.GetMany(ctx, []string{
			settings.KeyMaintenanceMode,
			settings.KeyNewRegistrations,
			settings.KeyMaxUsersEnabled,
			settings.KeyMaxUsersLimit,
		}, settings.Defaults)
		if enabled, _ := gates[settings.KeyMaintenanceMode].(bool); enabled {
			c.JSON(http.StatusForbidden, gin.H{"error": "Platform is under maintenance"})
			return
		}
		if open, _ := gates[settings.KeyNewRegistrations].(bool); !open {
			c.JSON(http.StatusForbidden, gin.H{"error": "Registrations are closed"})
			return
		}
		if capped, _ := gates[settings.KeyMaxUsersEnabled].(bool); capped {
			limit := int64(0)
			switch v := gates[settings.KeyMaxUsersLimit].(type) {
			case int:
				limit = int64(v)
			case float64:
				limit = int64(v)
			}
			count, err := users.Count()
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
				return
			}
			if count >= limit {
				c.JSON(http.StatusForbidden, gin.H{"error": "User limit reached"})
				return
			}
		}

		// Resolve the sponsor before creating anything.
		var sponsor *domain.User
		if req.ReferralCode != "" {
			var err error
			sponsor, err = users.ByReferralCode(strings.ToUpper(req.ReferralCode))
			if err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "Referral code not found"})
				return
			}
		}

		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		user := &domain.User{
			Username:       strings.ToLower(req.Username), // Lowercase to ensure uniqueness
			Password:       string(hash),
			ReferralCode:   utils.GenerateReferralCode(),
			AchievedLevels: domain.LevelSet{},
		}
		if sponsor != nil {
			user.ReferredByID = &sponsor.ID
		}
		if err := users.Create(user); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
			return
		}
		// Place the referral edge; side alternation happens under the
		// sponsor's insertion lock.
		if sponsor != nil {
			if _, err := graph.Place(sponsor.ID, user.ID); err != nil {
				respondError(c, err)
				return
			}
		}
		c.JSON(http.StatusCreated, gin.H{
			"message":       "User registered successfully",
			"referral_code": user.ReferralCode, // Code to hand to invitees
		})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(users store.UserStore, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := users.ByUsername(strings.ToLower(req.Username))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}
