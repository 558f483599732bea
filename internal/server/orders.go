package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/paygate/internal/order/domain"
)

type createOrderRequest struct {
	CustomerID     string         `json:"customerId"`
	Amount         int64          `json:"amount"`
	Currency       string         `json:"currency"`
	Receipt        string         `json:"receipt"`
	Notes          map[string]any `json:"notes"`
	Notification   map[string]any `json:"notification"`
	PaymentCapture *bool          `json:"payment_capture"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Create(c.Request.Context(), orderdomain.CreateOrderRequest{
		CustomerID:     strings.TrimSpace(req.CustomerID),
		Amount:         req.Amount,
		Currency:       req.Currency,
		Receipt:        req.Receipt,
		Notes:          req.Notes,
		Notification:   req.Notification,
		PaymentCapture: req.PaymentCapture,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListOrders(c *gin.Context) {
	resp, err := s.orderSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
