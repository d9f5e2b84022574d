package http

import (
	"context"
	nethttp "net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"access-bot-backend/internal/common/errors"
	"access-bot-backend/internal/common/validation"
	domain "access-bot-backend/internal/domain/account"
	mw "access-bot-backend/internal/http/middleware"
	"access-bot-backend/internal/service/staff"
)

// StaffAPI is the arbitration surface exposed to the staff Mini App.
type StaffAPI interface {
	Queue(ctx context.Context, actorID int64, offset, limit int) (*staff.Page, error)
	Approve(ctx context.Context, actorID, userID int64, method domain.PaymentMethod) (*staff.Result, error)
	Deny(ctx context.Context, actorID, userID int64) (*staff.Result, error)
}

type staffHandlers struct {
	staff StaffAPI
}

type queueResponse struct {
	Items  []domain.Account `json:"items"`
	Total  int64            `json:"total"`
	Offset int              `json:"offset"`
	Limit  int              `json:"limit"`
}

type decisionRequest struct {
	Method domain.PaymentMethod `json:"method"`
}

type decisionResponse struct {
	Outcome string          `json:"outcome"`
	Account *domain.Account `json:"account"`
}

// @Summary Pending payment queue
// @Description Accounts with a pending rub attempt or a sent receipt, oldest first
// @Tags staff
// @Produce json
// @Security TelegramInitData
// @Param offset query int false "Page offset"
// @Param limit query int false "Page size"
// @Success 200 {object} queueResponse
// @Failure 401 {object} mw.ErrorResponse "Invalid init_data"
// @Failure 403 {object} mw.ErrorResponse "Caller is not staff"
// @Router /api/v1/staff/queue [get]
func (h *staffHandlers) queue(c *gin.Context) {
	actorID, ok := mw.UserID(c)
	if !ok {
		mw.AbortWithError(c, errors.NewForbiddenError("no caller"))
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(staff.QueuePageSize)))

	page, err := h.staff.Queue(c.Request.Context(), actorID, offset, limit)
	if err != nil {
		mw.AbortWithError(c, err)
		return
	}
	items := page.Items
	if items == nil {
		items = []domain.Account{}
	}
	c.JSON(nethttp.StatusOK, queueResponse{Items: items, Total: page.Total, Offset: page.Offset, Limit: page.Limit})
}

// @Summary Approve a payment
// @Description Marks the pending attempt paid. Only the first decision wins; later ones get already_handled.
// @Tags staff
// @Accept json
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Telegram user ID"
// @Param input body decisionRequest false "Payment method override"
// @Success 200 {object} decisionResponse
// @Failure 400 {object} mw.ErrorResponse "Invalid id or method"
// @Failure 401 {object} mw.ErrorResponse "Invalid init_data"
// @Failure 403 {object} mw.ErrorResponse "Caller is not staff"
// @Failure 404 {object} mw.ErrorResponse "Account not found"
// @Router /api/v1/staff/accounts/{id}/approve [post]
func (h *staffHandlers) approve(c *gin.Context) {
	h.decide(c, true)
}

// @Summary Deny a payment
// @Description Marks the pending attempt failed. Only the first decision wins; later ones get already_handled.
// @Tags staff
// @Produce json
// @Security TelegramInitData
// @Param id path int true "Telegram user ID"
// @Success 200 {object} decisionResponse
// @Failure 400 {object} mw.ErrorResponse "Invalid id"
// @Failure 401 {object} mw.ErrorResponse "Invalid init_data"
// @Failure 403 {object} mw.ErrorResponse "Caller is not staff"
// @Failure 404 {object} mw.ErrorResponse "Account not found"
// @Router /api/v1/staff/accounts/{id}/deny [post]
func (h *staffHandlers) deny(c *gin.Context) {
	h.decide(c, false)
}

func (h *staffHandlers) decide(c *gin.Context, approve bool) {
	actorID, ok := mw.UserID(c)
	if !ok {
		mw.AbortWithError(c, errors.NewForbiddenError("no caller"))
		return
	}
	userID, err := validation.UserID("id", c.Param("id"))
	if err != nil {
		mw.AbortWithError(c, err)
		return
	}

	var res *staff.Result
	if approve {
		var req decisionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				mw.AbortWithError(c, errors.NewValidationError("body", err.Error()))
				return
			}
			if err := validation.PaymentMethod(req.Method); err != nil {
				mw.AbortWithError(c, err)
				return
			}
		}
		res, err = h.staff.Approve(c.Request.Context(), actorID, userID, req.Method)
	} else {
		res, err = h.staff.Deny(c.Request.Context(), actorID, userID)
	}
	if err != nil {
		mw.AbortWithError(c, err)
		return
	}

	outcome := "won"
	if res.Outcome == staff.AlreadyHandled {
		outcome = "already_handled"
	}
	c.JSON(nethttp.StatusOK, decisionResponse{Outcome: outcome, Account: res.Account})
}
