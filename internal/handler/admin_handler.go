package handler

import (
	"errors"
	"net/http"
	"strconv"

	"adwall/internal/domain"
	"adwall/internal/middleware"
	"adwall/internal/models"
	"adwall/internal/repository"
	"adwall/internal/service"

	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	userRepo   *repository.UserRepository
	ledgerRepo *repository.LedgerRepository
	auditRepo  *repository.AuditLogRepository
	billing    *service.BillingService
}

func NewAdminHandler(userRepo *repository.UserRepository, ledgerRepo *repository.LedgerRepository, auditRepo *repository.AuditLogRepository, billing *service.BillingService) *AdminHandler {
	return &AdminHandler{userRepo: userRepo, ledgerRepo: ledgerRepo, auditRepo: auditRepo, billing: billing}
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	users, total, err := h.userRepo.List(c.Query("search"), c.Query("role"), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list users"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}

type CreditRequest struct {
	AmountCents int64 `json:"amount_cents" binding:"required"`
}

// Credit grants balance to a user without a payment, for refunds and promos.
func (h *AdminHandler) Credit(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	var req CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.billing.AdminCredit(uint(id), req.AmountCents, middleware.GetUsername(c))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		case errors.Is(err, domain.ErrInvalidAmount):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "credit failed"})
		}
		return
	}
	actorID := middleware.GetUserID(c)
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:    &actorID,
		Action:    "admin_credit",
		Resource:  "user:" + c.Param("id"),
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	})
	c.JSON(http.StatusOK, gin.H{"user_id": u.ID, "balance_cents": u.BalanceCents})
}

// Ledger returns a user's transaction history plus a reconciliation check:
// the ledger must sum to the stored balance.
func (h *AdminHandler) Ledger(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	u, err := h.userRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	txs, err := h.ledgerRepo.ListByUser(u.ID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load ledger"})
		return
	}
	sum, err := h.ledgerRepo.SumByUser(u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sum ledger"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions":  txs,
		"ledger_sum":    sum,
		"balance_cents": u.BalanceCents,
		"reconciled":    sum == u.BalanceCents,
	})
}

// Authors feeds the admin dashboard's per-publisher filter.
func (h *AdminHandler) Authors(c *gin.Context) {
	users, err := h.userRepo.Authors()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list authors"})
		return
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Username)
	}
	c.JSON(http.StatusOK, gin.H{"authors": names})
}

func (h *AdminHandler) AuditLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 200 {
		limit = 50
	}
	logs, total, err := h.auditRepo.List(page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list audit logs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"logs":  logs,
		"total": total,
		"page":  page,
		"limit": limit,
	})
}
