package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/ws"
)

// PaytmHandler serves gateway order initiation and the callback
// webhook.
type PaytmHandler struct {
	deps *Deps
}

// NewPaytmHandler creates a new PaytmHandler instance.
func NewPaytmHandler(deps *Deps) *PaytmHandler {
	return &PaytmHandler{deps: deps}
}

type initiateRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Initiate opens a payment order and fetches a gateway transaction
// token for the client checkout.
func (h *PaytmHandler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	order, err := h.deps.Payments.CreateOrder(c.Request.Context(), userID, req.Amount)
	if err != nil {
		respondErr(c, err)
		return
	}

	initiated, err := h.deps.Gateway.InitiateTransaction(c.Request.Context(), order.OrderID, userID, order.Amount)
	if err != nil {
		log.Error().Err(err).Str("order_id", order.OrderID).Msg("Gateway initiate failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment gateway unavailable"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":  order.OrderID,
		"txn_token": initiated.TxnToken,
		"mid":       initiated.MerchantID,
		"amount":    order.Amount,
	})
}

// Callback is the gateway's server-to-server result notification. The
// checksum is verified before anything is written; the response is
// always a redirect to the client status page.
func (h *PaytmHandler) Callback(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.redirect(c, "", "failed")
		return
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for k := range c.Request.PostForm {
		params[k] = c.Request.PostForm.Get(k)
	}
	orderID := params["ORDERID"]

	if err := h.deps.Gateway.VerifyCallback(params); err != nil {
		log.Warn().Str("order_id", orderID).Msg("Callback checksum mismatch")
		h.redirect(c, orderID, "failed")
		return
	}

	amount, err := parseRupees(params["TXNAMOUNT"])
	if err != nil {
		h.redirect(c, orderID, "failed")
		return
	}
	success := params["STATUS"] == "TXN_SUCCESS"

	order, err := h.deps.Payments.ConfirmOrder(c.Request.Context(), orderID, success, params["TXNID"], amount)
	if err != nil {
		log.Error().Err(err).Str("order_id", orderID).Msg("Callback processing failed")
		h.redirect(c, orderID, "failed")
		return
	}

	if order.Status == model.OrderSuccess {
		h.deps.Hub.SendToUser(order.UserID, ws.EventWalletUpdate, gin.H{"order_id": order.OrderID})
	}
	h.redirect(c, orderID, order.Status)
}

func (h *PaytmHandler) redirect(c *gin.Context, orderID, status string) {
	c.Redirect(http.StatusFound, h.deps.RedirectURL+"?order_id="+orderID+"&status="+status)
}

// parseRupees converts the gateway's "500.00" rupee string to paise.
func parseRupees(s string) (int64, error) {
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return int64(value*100 + 0.5), nil
}
