package handler

import (
	"errors"
	"strconv"

	"loyaltysystem/internal/config"
	"loyaltysystem/internal/idempotency"
	"loyaltysystem/internal/model"
	"loyaltysystem/internal/repository"
	"loyaltysystem/internal/service"
	"loyaltysystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Handler bundles the services behind the HTTP surface.
type Handler struct {
	authService   *service.AuthService
	redeemService *service.RedeemService
	pointsService *service.PointsService
	codeService   *service.CodeService
}

func NewHandler(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Handler {
	auth := service.NewAuthService(db, cfg)
	guard := idempotency.NewGuard(rdb, cfg.Business.IdemReserveTTL(), cfg.Business.IdemResultTTL())

	return &Handler{
		authService:   auth,
		redeemService: service.NewRedeemService(db, cfg, auth, guard),
		pointsService: service.NewPointsService(db),
		codeService:   service.NewCodeService(db),
	}
}

// ============================================================
// Auth
// ============================================================

// Register creates an account and returns a fresh session token.
// POST /api/v1/register
func (h *Handler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			response.ParamError(c, "email already registered")
			return
		}
		response.ServerError(c, "registration failed")
		return
	}

	response.Success(c, result)
}

// Login verifies credentials and issues a session token.
// POST /api/v1/login
func (h *Handler) Login(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			response.Rejected(c, 401, response.ReasonUnauthorized)
			return
		}
		response.ServerError(c, "login failed")
		return
	}

	response.Success(c, result)
}

// Logout revokes the current session. The row is kept for audit.
// POST /api/v1/logout
func (h *Handler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), bearerToken(c)); err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			response.Rejected(c, 401, response.ReasonUnauthorized)
			return
		}
		response.ServerError(c, "logout failed")
		return
	}
	response.Success(c, gin.H{"message": "logged out"})
}

// ============================================================
// Redemption
// ============================================================

// ScanCode is the redemption endpoint. Authentication happens inside the
// engine rather than in middleware, so every exit of the state machine maps
// to exactly one reason code here.
// POST /api/v1/scan
func (h *Handler) ScanCode(c *gin.Context) {
	var req service.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.redeemService.Redeem(c.Request.Context(), bearerToken(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrMalformedCode) {
			response.ParamError(c, "invalid code format")
			return
		}
		// Transient: nothing committed, client should resubmit with the
		// same nonce.
		c.JSON(503, gin.H{"valid": false, "error": response.ReasonTryAgain})
		return
	}

	c.JSON(redeemStatus(result), result)
}

// redeemStatus maps a result to its HTTP status deterministically, so a
// replayed result gets the same status as the original response.
func redeemStatus(result *service.RedeemResult) int {
	if result.Valid {
		return 200
	}
	switch result.Error {
	case response.ReasonUnauthorized:
		return 401
	case response.ReasonCodeNotFound:
		return 404
	case response.ReasonAlreadyUsed:
		return 409
	default:
		return 400
	}
}

// ============================================================
// Points
// ============================================================

// GetBalance returns the cached balance plus the recomputed ledger sum.
// GET /api/v1/user/balance
func (h *Handler) GetBalance(c *gin.Context) {
	user := currentUser(c)

	cached, ledgerSum, err := h.pointsService.Reconcile(c.Request.Context(), user.ID)
	if err != nil {
		response.ServerError(c, "failed to load balance")
		return
	}

	response.Success(c, gin.H{
		"user_id":    user.UserID,
		"points":     cached,
		"ledger_sum": ledgerSum,
	})
}

// GetTransactions pages through the user's ledger, newest first.
// GET /api/v1/user/transactions?limit=50&offset=0
func (h *Handler) GetTransactions(c *gin.Context) {
	user := currentUser(c)
	limit, offset := pagination(c)

	entries, total, err := h.pointsService.History(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		response.ServerError(c, "failed to load transactions")
		return
	}

	response.Success(c, gin.H{
		"transactions": entries,
		"total":        total,
		"limit":        limit,
		"offset":       offset,
	})
}

// GetScans pages through the user's redemption history.
// GET /api/v1/user/scans?limit=50&offset=0
func (h *Handler) GetScans(c *gin.Context) {
	user := currentUser(c)
	limit, offset := pagination(c)

	scans, total, err := h.pointsService.Scans(c.Request.Context(), user.ID, limit, offset)
	if err != nil {
		response.ServerError(c, "failed to load scans")
		return
	}

	totalPoints, err := h.pointsService.TotalEarned(c.Request.Context(), user.ID)
	if err != nil {
		response.ServerError(c, "failed to load scans")
		return
	}

	response.Success(c, gin.H{
		"scans":        scans,
		"total_scans":  total,
		"total_points": totalPoints,
		"limit":        limit,
		"offset":       offset,
	})
}

type spendRequest struct {
	Amount      int64  `json:"amount" binding:"required,gt=0"`
	Description string `json:"description" binding:"required"`
}

// SpendPoints debits the balance for the order flow.
// POST /api/v1/points/spend
func (h *Handler) SpendPoints(c *gin.Context) {
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	user := currentUser(c)

	entry, err := h.pointsService.Spend(c.Request.Context(), user.ID, req.Amount, req.Description)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientPoints) {
			response.Rejected(c, 409, response.ReasonInsufficientPoints)
			return
		}
		if errors.Is(err, repository.ErrOptimisticLock) {
			c.JSON(503, gin.H{"valid": false, "error": response.ReasonTryAgain})
			return
		}
		response.ServerError(c, "spend failed")
		return
	}

	response.Success(c, gin.H{
		"entry_no": entry.EntryNo,
		"amount":   entry.Amount,
		"balance":  entry.BalanceAfter,
	})
}

// ============================================================
// Operator tooling
// ============================================================

// CreateCode mints a new active code. Operator or admin role required;
// non-positive rewards are rejected here and never reach the engine.
// POST /api/v1/qr/create
func (h *Handler) CreateCode(c *gin.Context) {
	user := currentUser(c)
	if user.Role != model.RoleOperator && user.Role != model.RoleAdmin {
		response.Forbidden(c, "operator role required")
		return
	}

	var req service.InsertCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	code, err := h.codeService.InsertCode(c.Request.Context(), &req, user.ID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidReward) {
			response.ParamError(c, "points must be positive")
			return
		}
		response.ServerError(c, "failed to create code")
		return
	}

	response.Success(c, code)
}

type revokeRequest struct {
	Code string `json:"code" binding:"required"`
}

// RevokeCode retires an active code.
// POST /api/v1/qr/revoke
func (h *Handler) RevokeCode(c *gin.Context) {
	user := currentUser(c)
	if user.Role != model.RoleOperator && user.Role != model.RoleAdmin {
		response.Forbidden(c, "operator role required")
		return
	}

	var req revokeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "invalid request: "+err.Error())
		return
	}

	if err := h.codeService.Revoke(c.Request.Context(), req.Code); err != nil {
		if errors.Is(err, repository.ErrCodeNotActive) {
			response.ParamError(c, "code is not active")
			return
		}
		response.ServerError(c, "failed to revoke code")
		return
	}

	response.Success(c, gin.H{"message": "code revoked"})
}

// GetStatistics returns system-wide counters for the admin dashboard.
// GET /api/v1/statistics
func (h *Handler) GetStatistics(c *gin.Context) {
	user := currentUser(c)
	if user.Role != model.RoleAdmin {
		response.Forbidden(c, "admin role required")
		return
	}

	stats, err := h.codeService.Statistics(c.Request.Context())
	if err != nil {
		response.ServerError(c, "failed to load statistics")
		return
	}

	response.Success(c, stats)
}

func pagination(c *gin.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
