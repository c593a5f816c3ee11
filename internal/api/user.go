package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Cache TTLs

	"referral_system/internal/domain"   // Importing domain models
	"referral_system/internal/referral" // Reward engine
	"referral_system/internal/store"    // Persistence interfaces
	"referral_system/internal/utils"    // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// ProfileHandler returns the authenticated user's account state, cached for
// 60 seconds.
func ProfileHandler(users store.UserStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                                    // Context for Redis operations
		cacheKey := "profile:user:" + strconv.Itoa(int(userID.(uint))) // Cache key for profile
		var cached gin.H
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached) // Try to get from cache
		if err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		user, err := users.ByID(userID.(uint))
		if err != nil {
			respondError(c, err)
			return
		}
		resp := gin.H{
			"id":                user.ID,
			"username":          user.Username,
			"balance":           user.Balance,
			"total_deposits":    user.TotalDeposits,
			"total_withdrawals": user.TotalWithdrawals,
			"referral_code":     user.ReferralCode,
			"is_active":         user.IsActive,
			"achieved_levels":   user.AchievedLevels,
			"spin_wheel_count":  user.SpinWheelCount,
			"cached":            false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the profile for 60 seconds
		c.JSON(http.StatusOK, resp)
	}
}

// CheckRewardsHandler runs the level-reward evaluation for the authenticated
// user. This is the user-initiated trigger point; the evaluation is the same
// idempotent call the activation cascade makes, so invoking it repeatedly
// never double-credits a tier.
func CheckRewardsHandler(engine *referral.Engine, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		eval, err := engine.Evaluate(userID.(uint))
		if err != nil {
			respondError(c, err)
			return
		}
		// The balance may have moved, drop the cached profile.
		if rdb != nil {
			ctx := context.Background()
			_ = utils.DeleteCache(ctx, rdb, "profile:user:"+strconv.Itoa(int(userID.(uint))))
		}
		c.JSON(http.StatusOK, gin.H{
			"left_count":      eval.LeftCount,
			"right_count":     eval.RightCount,
			"achieved_levels": eval.AchievedLevels,
			"newly_achieved":  eval.NewlyAchieved,
			"balance":         eval.Balance,
		})
	}
}

// GetTransactionHistoryHandler returns the user's transaction log, paginated
// and cached for 60 seconds.
func GetTransactionHistoryHandler(txs store.TransactionStore, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		offset := (page - 1) * pageSize // Calculate offset
		// Redis cache key
		cacheKey := "txhistory:user:" + strconv.Itoa(int(userID.(uint))) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Transactions []domain.Transaction `json:"transactions"` // List of transactions
			Page         int                  `json:"page"`         // Current page
			PageSize     int                  `json:"page_size"`    // Page size
			Total        int64                `json:"total"`        // Total transactions
			TotalPages   int                  `json:"total_pages"`  // Total pages
		}
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions,
				"page":         cached.Page,
				"page_size":    cached.PageSize,
				"total":        cached.Total,
				"total_pages":  cached.TotalPages,
				"cached":       true,
			})
			return
		}
		list, total, err := txs.ListByUser(userID.(uint), offset, pageSize)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize // Calculate total pages
		resp := gin.H{
			"transactions": list,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
			"cached":       false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the result for 60 seconds
		c.JSON(http.StatusOK, resp)
	}
}

// ReferralSummaryHandler lists the authenticated user's direct referrals with
// their side and activation state.
func ReferralSummaryHandler(edges store.EdgeStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		list, err := edges.ListByReferrer(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch referrals"})
			return
		}
		left, right, err := edges.CountActiveBySide(userID.(uint))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count referrals"})
			return
		}
		type edgeView struct {
			ReferredID uint        `json:"referred_id"` // Referred user
			Side       domain.Side `json:"side"`        // left or right slot
			IsActive   bool        `json:"is_active"`   // Activation state
		}
		views := make([]edgeView, len(list))
		for i, e := range list {
			views[i] = edgeView{ReferredID: e.ReferredID, Side: e.Side, IsActive: e.IsActive}
		}
		c.JSON(http.StatusOK, gin.H{
			"referrals":    views,
			"active_left":  left,
			"active_right": right,
		})
	}
}
