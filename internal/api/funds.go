package api

import (
	"context"  // Context for settings reads and cache invalidation
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"referral_system/internal/activation" // Registration-deposit workflow
	"referral_system/internal/funds"      // Withdrawals and daily rewards
	"referral_system/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
)

// DepositRequest is the deposit submission payload.
type DepositRequest struct {
	Amount          float64 `json:"amount" binding:"required,gt=0"` // Deposit amount
	TransactionHash string  `json:"transaction_hash"`               // Opaque payment hash
	Registration    bool    `json:"registration"`                   // One-time activation deposit
}

// SubmitDepositHandler routes a deposit into the registration workflow or the
// ordinary path based on the request flag.
func SubmitDepositHandler(workflow *activation.Workflow) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req DepositRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		ctx := context.Background()
		var err error
		var deposit any
		if req.Registration {
			deposit, err = workflow.SubmitRegistrationDeposit(ctx, userID.(uint), req.Amount, req.TransactionHash)
		} else {
			deposit, err = workflow.SubmitDeposit(ctx, userID.(uint), req.Amount, req.TransactionHash)
		}
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Deposit submitted", "deposit": deposit})
	}
}

// WithdrawRequest is the withdrawal request payload.
type WithdrawRequest struct {
	Amount        float64 `json:"amount" binding:"required,gt=0"`    // Withdrawal amount
	WalletAddress string  `json:"wallet_address" binding:"required"` // Destination address
}

// RequestWithdrawalHandler debits the balance optimistically and records a
// pending withdrawal for admin review.
func RequestWithdrawalHandler(svc *funds.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req WithdrawRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		ctx := context.Background()
		withdrawal, err := svc.RequestWithdrawal(ctx, userID.(uint), req.Amount, req.WalletAddress)
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUserCaches(ctx, rdb, userID.(uint)) // Balance moved
		c.JSON(http.StatusCreated, gin.H{"message": "Withdrawal requested", "withdrawal": withdrawal})
	}
}

// SpinHandler claims the daily spin reward.
func SpinHandler(svc *funds.Service, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID")
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()
		tx, err := svc.SpinDailyReward(ctx, userID.(uint))
		if err != nil {
			respondError(c, err)
			return
		}
		invalidateUserCaches(ctx, rdb, userID.(uint)) // Balance moved
		c.JSON(http.StatusOK, gin.H{"message": "Daily reward credited", "amount": tx.Amount})
	}
}

// invalidateUserCaches drops the user's cached profile and transaction
// history pages after a balance mutation.
func invalidateUserCaches(ctx context.Context, rdb *redis.Client, userID uint) {
	if rdb == nil {
		return
	}
	id := strconv.Itoa(int(userID))
	_ = utils.DeleteCache(ctx, rdb, "profile:user:"+id) // Invalidate profile cache
	// Invalidate paginated txhistory cache (simple version: delete first 5 pages)
	for i := 1; i <= 5; i++ {
		_ = utils.DeleteCache(ctx, rdb, "txhistory:user:"+id+":page:"+strconv.Itoa(i)+":size:20")
	}
}
