package api

import (
	"context"  // Context for Redis operations
	"net/http" // HTTP status codes
	"strconv"  // String conversion
	"time"     // Time durations

	"referral_system/internal/activation" // Registration-deposit workflow
	"referral_system/internal/domain"     // Importing domain models
	"referral_system/internal/funds"      // Withdrawal resolution
	"referral_system/internal/settings"   // Tiered settings cache
	"referral_system/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// adminID pulls the authenticated admin's user ID for audit fields.
func adminID(c *gin.Context) (uint, bool) {
	v, exists := c.Get("userID")
	if !exists {
		return 0, false
	}
	return v.(uint), true
}

// VerifyDepositHandler approves or rejects a pending deposit. Registration
// deposits run the activation cascade; ordinary deposits only move balance.
func VerifyDepositHandler(workflow *activation.Workflow, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := adminID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		depositID, err := strconv.Atoi(c.Param("id")) // Deposit ID from path
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid deposit ID"})
			return
		}
		var req struct {
			Action       string `json:"action" binding:"required"` // approve or reject
			Registration bool   `json:"registration"`              // Which workflow resolves it
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var deposit *domain.Deposit
		switch {
		case req.Action == "approve" && req.Registration:
			deposit, err = workflow.ApproveRegistrationDeposit(uint(depositID), admin)
		case req.Action == "reject" && req.Registration:
			deposit, err = workflow.RejectRegistrationDeposit(uint(depositID), admin)
		case req.Action == "approve":
			deposit, err = workflow.ApproveDeposit(uint(depositID), admin)
		case req.Action == "reject":
			deposit, err = workflow.RejectDeposit(uint(depositID), admin)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Action must be approve or reject"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUserCaches(context.Background(), rdb, deposit.UserID) // Balance may have moved
		c.JSON(http.StatusOK, gin.H{"message": "Deposit " + string(deposit.Status), "deposit": deposit})
	}
}

// VerifyWithdrawalHandler approves or rejects a pending withdrawal; rejection
// refunds the held amount.
func VerifyWithdrawalHandler(svc *funds.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := adminID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		withdrawalID, err := strconv.Atoi(c.Param("id")) // Withdrawal ID from path
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid withdrawal ID"})
			return
		}
		var req struct {
			Action string `json:"action" binding:"required"` // approve or reject
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var withdrawal *domain.Withdrawal
		switch req.Action {
		case "approve":
			withdrawal, err = svc.ApproveWithdrawal(uint(withdrawalID), admin)
		case "reject":
			withdrawal, err = svc.RejectWithdrawal(uint(withdrawalID), admin)
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Action must be approve or reject"})
			return
		}
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUserCaches(context.Background(), rdb, withdrawal.UserID) // Balance may have moved
		c.JSON(http.StatusOK, gin.H{"message": "Withdrawal " + string(withdrawal.Status), "withdrawal": withdrawal})
	}
}

// GetSettingsHandler returns the resolved value of every known setting.
func GetSettingsHandler(cache *settings.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		keys := make([]string, 0, len(settings.Defaults))
		for k := range settings.Defaults {
			keys = append(keys, k)
		}
		values := cache.GetMany(context.Background(), keys, settings.Defaults)
		c.JSON(http.StatusOK, gin.H{"settings": values})
	}
}

// UpdateSettingHandler writes a setting and synchronously invalidates both
// cache levels, so the next read anywhere reflects the new value.
func UpdateSettingHandler(cache *settings.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Key         string `json:"key" binding:"required"`   // Setting key
			Value       any    `json:"value" binding:"required"` // New value
			Description string `json:"description"`              // Operator note
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		if err := cache.Update(context.Background(), req.Key, req.Value, req.Description); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update setting"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Setting updated", "key": req.Key})
	}
}

// ListUsersHandler returns all users, paginated and cached for 60 seconds.
func ListUsersHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background() // Use background context for Redis
		// Create a cache key based on pagination parameters
		cacheKey := "admin:users:page=" + c.DefaultQuery("page", "1") + ":size=" + c.DefaultQuery("page_size", "20")
		var cached gin.H
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		page := 1      // Default page number
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size
			}
		}
		offset := (page - 1) * pageSize // Calculate offset for pagination
		var total int64                 // Total user count
		if err := db.Model(&domain.User{}).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count users"})
			return
		}
		var users []domain.User // Slice to hold users
		if err := db.Offset(offset).Limit(pageSize).Find(&users).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize // Calculate total pages
		resp := gin.H{
			"users":       users,
			"page":        page,
			"page_size":   pageSize,
			"total":       total,
			"total_pages": totalPages,
			"cached":      false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the response
		c.JSON(http.StatusOK, resp)
	}
}

// ListTransactionsHandler returns all transactions, with optional filtering
// by user, type, or status, cached for 60 seconds.
func ListTransactionsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := context.Background()
		// Build cache key from all query params
		cacheKey := "admin:txs:user=" + c.DefaultQuery("user_id", "") +
			":type=" + c.DefaultQuery("type", "") +
			":status=" + c.DefaultQuery("status", "") +
			":page=" + c.DefaultQuery("page", "1") +
			":size=" + c.DefaultQuery("page_size", "20")
		var cached gin.H
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			cached["cached"] = true
			c.JSON(http.StatusOK, cached)
			return
		}
		page := 1      // Default page number
		pageSize := 20 // Default page size
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v
			}
		}
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v
			}
		}
		offset := (page - 1) * pageSize          // Calculate offset for pagination
		query := db.Model(&domain.Transaction{}) // Start building the query
		if userID := c.Query("user_id"); userID != "" {
			query = query.Where("user_id = ?", userID) // Filter by user ID
		}
		if txType := c.Query("type"); txType != "" {
			query = query.Where("type = ?", txType) // Filter by transaction type
		}
		if status := c.Query("status"); status != "" {
			query = query.Where("status = ?", status) // Filter by status
		}
		var total int64 // Total transaction count
		if err := query.Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var txs []domain.Transaction // Slice to hold transactions
		if err := query.Order("created_at desc").Offset(offset).Limit(pageSize).Find(&txs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := gin.H{
			"transactions": txs,
			"page":         page,
			"page_size":    pageSize,
			"total":        total,
			"total_pages":  totalPages,
			"cached":       false,
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second) // Cache the response
		c.JSON(http.StatusOK, resp)
	}
}
