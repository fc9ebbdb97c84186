package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"copytrader/internal/journal"
	"copytrader/internal/ledger"
	"copytrader/internal/models"
	"copytrader/internal/pending"
	"copytrader/internal/resilience"
	"copytrader/internal/trading"
)

type handler struct {
	svc    *trading.Service
	sink   SignalSink
	health *resilience.Checker

	signalLimit *resilience.RateLimiter
}

func (h *handler) register(r *gin.Engine) {
	r.GET("/health", h.handleHealth)
	r.GET("/experts", h.handleExperts)
	r.POST("/signals", rateLimit(h.signalLimit), h.handleSignal)

	u := r.Group("/users/:user")
	u.GET("/portfolio", h.handlePortfolio)
	u.PUT("/portfolio/prices/:symbol", h.handleMarkPrice)
	u.GET("/transactions", h.handleTransactions)
	u.POST("/trades", h.handleTrade)
	u.GET("/subscriptions", h.handleSubscriptions)
	u.POST("/subscriptions", h.handleFollow)
	u.DELETE("/subscriptions/:expert", h.handleUnfollow)
	u.PUT("/subscriptions/:expert/settings", h.handleSettings)
	u.PUT("/subscriptions/:expert/autocopy", h.handleAutoCopy)
	u.GET("/pending", h.handlePending)
	u.DELETE("/pending", h.handleRejectAll)
	u.POST("/pending/:id/approve", h.handleApprove)
	u.POST("/pending/:id/reject", h.handleReject)
	u.GET("/notifications", h.handleNotifications)
	u.POST("/notifications/read", h.handleMarkRead)
}

func (h *handler) handleHealth(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": resilience.HealthStatusHealthy})
		return
	}
	report := h.health.Check(c.Request.Context())
	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

func (h *handler) handleExperts(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Catalog().All())
}

type holdingView struct {
	models.Holding
	MarketValue          decimal.Decimal `json:"market_value"`
	UnrealizedPnL        decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPercent decimal.Decimal `json:"unrealized_pnl_percent"`
}

type portfolioView struct {
	User     string         `json:"user"`
	Holdings []holdingView  `json:"holdings"`
	Summary  ledger.Summary `json:"summary"`
}

func (h *handler) handlePortfolio(c *gin.Context) {
	b, err := h.svc.State(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err)
		return
	}
	view := portfolioView{
		User:     b.UserID,
		Holdings: make([]holdingView, 0, len(b.Portfolio.Holdings)),
		Summary:  ledger.Summarize(b.Portfolio),
	}
	for _, hd := range b.Portfolio.Holdings {
		view.Holdings = append(view.Holdings, holdingView{
			Holding:              hd,
			MarketValue:          hd.MarketValue(),
			UnrealizedPnL:        ledger.UnrealizedPnL(hd),
			UnrealizedPnLPercent: ledger.UnrealizedPnLPercent(hd),
		})
	}
	c.JSON(http.StatusOK, view)
}

func (h *handler) handleMarkPrice(c *gin.Context) {
	var req struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	b, err := h.svc.MarkPrice(c.Request.Context(), c.Param("user"), c.Param("symbol"), req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ledger.Summarize(b.Portfolio))
}

func (h *handler) handleTransactions(c *gin.Context) {
	b, err := h.svc.State(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err)
		return
	}
	f := journal.Filter{
		Symbol:   strings.ToUpper(c.Query("symbol")),
		Type:     models.TradeAction(strings.ToLower(c.Query("type"))),
		CopyOnly: c.Query("copy") == "true",
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			badRequest(c, "limit must be a non-negative integer")
			return
		}
		f.Limit = n
	}
	txns := b.Journal.Query(f)
	if txns == nil {
		txns = []models.Transaction{}
	}
	c.JSON(http.StatusOK, txns)
}

type tradeRequest struct {
	Action string          `json:"action" binding:"required"`
	Symbol string          `json:"symbol" binding:"required"`
	Shares decimal.Decimal `json:"shares"`
	Price  decimal.Decimal `json:"price"`
}

func (h *handler) handleTrade(c *gin.Context) {
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	action, err := models.ParseTradeAction(req.Action)
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	txn, err := h.svc.Trade(c.Request.Context(), c.Param("user"), action, req.Symbol, req.Shares, req.Price)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

func (h *handler) handleSubscriptions(c *gin.Context) {
	b, err := h.svc.State(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b.Subscriptions.All())
}

type followRequest struct {
	ExpertID string               `json:"expert_id" binding:"required"`
	Amount   decimal.Decimal      `json:"amount"`
	AutoCopy bool                 `json:"auto_copy"`
	Settings *models.CopySettings `json:"settings,omitempty"`
}

func (h *handler) handleFollow(c *gin.Context) {
	var req followRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	sub, err := h.svc.Follow(c.Request.Context(), c.Param("user"), req.ExpertID, req.Amount, req.AutoCopy, req.Settings)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

func (h *handler) handleUnfollow(c *gin.Context) {
	sub, err := h.svc.Unfollow(c.Request.Context(), c.Param("user"), c.Param("expert"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handler) handleSettings(c *gin.Context) {
	var settings models.CopySettings
	if err := c.ShouldBindJSON(&settings); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	sub, err := h.svc.UpdateSettings(c.Request.Context(), c.Param("user"), c.Param("expert"), settings)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handler) handleAutoCopy(c *gin.Context) {
	var req struct {
		AutoCopy *bool `json:"auto_copy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.AutoCopy == nil {
		badRequest(c, "auto_copy is required")
		return
	}
	sub, err := h.svc.SetAutoCopy(c.Request.Context(), c.Param("user"), c.Param("expert"), *req.AutoCopy)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (h *handler) handlePending(c *gin.Context) {
	b, err := h.svc.State(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, b.Pending.All())
}

func (h *handler) handleApprove(c *gin.Context) {
	var review pending.Review
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&review); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	txn, err := h.svc.Approve(c.Request.Context(), c.Param("user"), c.Param("id"), review)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}

func (h *handler) handleReject(c *gin.Context) {
	pt, err := h.svc.Reject(c.Request.Context(), c.Param("user"), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pt)
}

func (h *handler) handleRejectAll(c *gin.Context) {
	n, err := h.svc.RejectAll(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rejected": n})
}

func (h *handler) handleSignal(c *gin.Context) {
	var sig models.CopySignal
	if err := c.ShouldBindJSON(&sig); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if sig.ExpertID == "" {
		badRequest(c, "expert_id is required")
		return
	}
	if h.sink != nil {
		if err := h.sink.PublishContext(c.Request.Context(), sig); err != nil {
			fail(c, err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
		return
	}
	results, err := h.svc.HandleSignal(c.Request.Context(), sig)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

func (h *handler) handleNotifications(c *gin.Context) {
	list, err := h.svc.Notifications(c.Request.Context(), c.Param("user"))
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("unread") == "true" {
		unread := make([]models.Notification, 0, len(list))
		for _, n := range list {
			if !n.Read {
				unread = append(unread, n)
			}
		}
		list = unread
	}
	c.JSON(http.StatusOK, list)
}

func (h *handler) handleMarkRead(c *gin.Context) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}
	n, err := h.svc.MarkNotificationsRead(c.Request.Context(), c.Param("user"), req.IDs...)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": n})
}
