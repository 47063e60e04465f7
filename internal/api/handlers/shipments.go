package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/delifast/internal/domain"
	"github.com/jafarshop/delifast/internal/repository"
	"github.com/jafarshop/delifast/internal/service"
	pkgerrors "github.com/jafarshop/delifast/pkg/errors"
)

// ShipmentResponse is the admin API view of a shipment row
type ShipmentResponse struct {
	ShopifyOrderID     string  `json:"shopify_order_id"`
	ShopifyOrderNumber string  `json:"shopify_order_number"`
	ShipmentID         *string `json:"shipment_id"`
	IsTemporaryID      bool    `json:"is_temporary_id"`
	Status             string  `json:"status"`
	StatusDetails      *string `json:"status_details"`
	SentAt             *string `json:"sent_at"`
	NextLookupAt       *string `json:"next_lookup_at"`
	LookupAttempts     int     `json:"lookup_attempts"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toShipmentResponse(s *domain.Shipment) ShipmentResponse {
	resp := ShipmentResponse{
		ShopifyOrderID:     s.ShopifyOrderID,
		ShopifyOrderNumber: s.ShopifyOrderNumber,
		ShipmentID:         s.ShipmentID,
		IsTemporaryID:      s.IsTemporaryID,
		Status:             string(s.Status),
		StatusDetails:      s.StatusDetails,
		LookupAttempts:     s.LookupAttempts,
		CreatedAt:          s.CreatedAt.Format(timeLayout),
		UpdatedAt:          s.UpdatedAt.Format(timeLayout),
	}
	if s.SentAt != nil {
		v := s.SentAt.Format(timeLayout)
		resp.SentAt = &v
	}
	if s.NextLookupAt != nil {
		v := s.NextLookupAt.Format(timeLayout)
		resp.NextLookupAt = &v
	}
	return resp
}

// HandleListShipments handles GET /v1/shops/:shop/shipments?status=&limit=&offset=
func HandleListShipments(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := repository.ShipmentFilter{
			Status: domain.ShipmentStatus(strings.TrimSpace(c.Query("status"))),
		}
		if v, err := strconv.Atoi(c.DefaultQuery("limit", "50")); err == nil {
			filter.Limit = v
		}
		if v, err := strconv.Atoi(c.DefaultQuery("offset", "0")); err == nil {
			filter.Offset = v
		}

		shipments, total, err := svc.Workflow.ListShipments(c.Request.Context(), shopParam(c), filter)
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}

		data := make([]ShipmentResponse, 0, len(shipments))
		for _, s := range shipments {
			data = append(data, toShipmentResponse(s))
		}
		c.JSON(http.StatusOK, gin.H{
			"data":   data,
			"total":  total,
			"limit":  filter.Limit,
			"offset": filter.Offset,
		})
	}
}

// HandleGetShipment handles GET /v1/shops/:shop/shipments/:orderId
func HandleGetShipment(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := svc.Workflow.GetShipment(c.Request.Context(), shopParam(c), c.Param("orderId"))
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, toShipmentResponse(s))
	}
}

// HandleRefreshShipment handles POST /v1/shops/:shop/shipments/:orderId/refresh.
// A missing shipment is a server-side failure here, not a 404.
func HandleRefreshShipment(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Workflow.RefreshStatus(c.Request.Context(), shopParam(c), c.Param("orderId"))
		if err != nil {
			respondError(c, logger, err, http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type replaceShipmentIDRequest struct {
	ShipmentID string `json:"shipment_id" binding:"required"`
}

// HandleReplaceShipmentID handles PUT /v1/shops/:shop/shipments/:orderId/shipment-id
func HandleReplaceShipmentID(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req replaceShipmentIDRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
			return
		}

		res, err := svc.Workflow.ReplaceTemporaryID(c.Request.Context(), shopParam(c), c.Param("orderId"), strings.TrimSpace(req.ShipmentID))
		if err != nil {
			respondError(c, logger, err, http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// HandleSendOrder handles POST /v1/shops/:shop/orders/:orderId/send: fetches the
// order from Shopify and sends it to Delifast regardless of delivery mode
func HandleSendOrder(svc *Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		shop := shopParam(c)

		order, err := svc.Orders.GetOrder(ctx, shop, c.Param("orderId"))
		if err != nil {
			respondError(c, logger, err, http.StatusNotFound)
			return
		}

		res, err := svc.Workflow.SendOrder(ctx, shop, order, service.SendSourceManual)
		if err != nil {
			var nf *pkgerrors.ErrNotFound
			var conflict *pkgerrors.ErrConflict
			if errors.As(err, &nf) || errors.As(err, &conflict) {
				respondError(c, logger, err, http.StatusNotFound)
				return
			}
			s, getErr := svc.Workflow.GetShipment(ctx, shop, order.IDString())
			if getErr == nil && s.Status == domain.ShipmentStatusError {
				// carrier rejected the order; the row carries the message
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "shipment": toShipmentResponse(s)})
				return
			}
			respondError(c, logger, err, http.StatusNotFound)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
