package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"marketpilot/internal/engine"
	"marketpilot/internal/flows"
	"marketpilot/internal/orders"
	"marketpilot/internal/settings"
	"marketpilot/internal/stats"
	"marketpilot/platform/apperr"
	"marketpilot/platform/config"
	"marketpilot/platform/httpkit"
	"marketpilot/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

// BindingStore manages lot bindings.
type BindingStore interface {
	ListAll(ctx context.Context) ([]flows.Binding, error)
	Get(ctx context.Context, id int64) (flows.Binding, error)
	Create(ctx context.Context, b flows.Binding) (int64, error)
	Update(ctx context.Context, b flows.Binding) error
	Delete(ctx context.Context, id int64) error
}

// SettingsStore manages the automation settings.
type SettingsStore interface {
	Get(ctx context.Context) (settings.AutomationSettings, error)
	Update(ctx context.Context, s settings.AutomationSettings) error
}

// StatsStore reads recorded snapshots.
type StatsStore interface {
	Recent(ctx context.Context, limit int) ([]stats.Snapshot, error)
}

// ReconcileRunner triggers a ledger reconciliation pass.
type ReconcileRunner interface {
	Run(ctx context.Context) (engine.Result, error)
}

// Module wires the HTTP handlers.
type Module struct {
	auth       config.AuthConfig
	orders     *OrderService
	bindings   BindingStore
	settings   SettingsStore
	stats      StatsStore
	reconciler ReconcileRunner
	registry   *flows.Registry
	log        *logger.Logger
}

// NewModule creates the API module and registers custom validations.
func NewModule(
	auth config.AuthConfig,
	orderSvc *OrderService,
	bindings BindingStore,
	settingsStore SettingsStore,
	statsStore StatsStore,
	reconciler ReconcileRunner,
	registry *flows.Registry,
	log *logger.Logger,
) *Module {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("orderaction", func(fl validator.FieldLevel) bool {
			switch fl.Field().String() {
			case ActionStart, ActionComplete, ActionRefund:
				return true
			}
			return false
		})
	}
	return &Module{
		auth:       auth,
		orders:     orderSvc,
		bindings:   bindings,
		settings:   settingsStore,
		stats:      statsStore,
		reconciler: reconciler,
		registry:   registry,
		log:        log,
	}
}

// RegisterRoutes mounts the API on the router.
func (m *Module) RegisterRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/api/login", m.login)

	api := r.Group("/api", httpkit.RequireAuth(m.auth.GetJWTSecret()))
	api.GET("/orders", m.listOrders)
	api.GET("/orders/:id", m.getOrder)
	api.POST("/orders/:id/action", m.orderAction)
	api.GET("/flows", m.listFlows)
	api.GET("/bindings", m.listBindings)
	api.POST("/bindings", m.createBinding)
	api.PUT("/bindings/:id", m.updateBinding)
	api.DELETE("/bindings/:id", m.deleteBinding)
	api.GET("/automation", m.getSettings)
	api.PUT("/automation", m.updateSettings)
	api.GET("/stats", m.listStats)
	api.POST("/reconcile", m.reconcile)
}

func (m *Module) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, apperr.BadRequest("username and password are required"))
		return
	}

	if req.Username != m.auth.GetAdminUsername() ||
		bcrypt.CompareHashAndPassword([]byte(m.auth.GetAdminPasswordHash()), []byte(req.Password)) != nil {
		httpkit.Error(c, apperr.Unauthorized("invalid credentials"))
		return
	}

	ttl := m.auth.GetAccessTokenTTL()
	token, err := httpkit.IssueToken(m.auth.GetJWTSecret(), req.Username, ttl)
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, loginResponse{Token: token, ExpiresIn: int64(ttl.Seconds())})
}

func (m *Module) listOrders(c *gin.Context) {
	var status *orders.Status
	if raw := c.Query("status"); raw != "" {
		s := orders.Status(raw)
		status = &s
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := m.orders.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	out := make([]orderResponse, len(items))
	for i, o := range items {
		out[i] = toOrderResponse(o)
	}
	httpkit.OK(c, gin.H{"orders": out})
}

func (m *Module) getOrder(c *gin.Context) {
	order, err := m.orders.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, toOrderResponse(order))
}

func (m *Module) orderAction(c *gin.Context) {
	var req orderActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, apperr.BadRequest("action must be start, complete or refund"))
		return
	}

	order, err := m.orders.Act(c.Request.Context(), c.Param("id"), req.Action)
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	m.log.Info("operator action applied", "order_id", order.MarketOrderID, "action", req.Action)
	httpkit.OK(c, toOrderResponse(order))
}

func (m *Module) listFlows(c *gin.Context) {
	defs := m.registry.All()
	out := make([]gin.H, len(defs))
	for i, d := range defs {
		out[i] = gin.H{"id": d.ID, "title": d.Title}
	}
	httpkit.OK(c, gin.H{"flows": out})
}

func (m *Module) listBindings(c *gin.Context) {
	items, err := m.bindings.ListAll(c.Request.Context())
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, gin.H{"bindings": items})
}

func (m *Module) createBinding(c *gin.Context) {
	req, ok := m.bindBindingRequest(c)
	if !ok {
		return
	}
	id, err := m.bindings.Create(c.Request.Context(), req.toBinding(0))
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, gin.H{"id": id})
}

func (m *Module) updateBinding(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, apperr.BadRequest("invalid binding id"))
		return
	}
	req, ok := m.bindBindingRequest(c)
	if !ok {
		return
	}
	if err := m.bindings.Update(c.Request.Context(), req.toBinding(id)); err != nil {
		if errors.Is(err, flows.ErrBindingNotFound) {
			err = apperr.NotFound("binding not found")
		}
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, gin.H{"id": id})
}

func (m *Module) deleteBinding(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, apperr.BadRequest("invalid binding id"))
		return
	}
	if err := m.bindings.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, flows.ErrBindingNotFound) {
			err = apperr.NotFound("binding not found")
		}
		httpkit.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindBindingRequest validates a binding payload, including that the flow it
// routes to actually exists.
func (m *Module) bindBindingRequest(c *gin.Context) (bindingRequest, bool) {
	var req bindingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, apperr.BadRequest("invalid binding payload"))
		return req, false
	}
	if _, ok := m.registry.Get(req.FlowID); !ok {
		httpkit.Error(c, apperr.Validation("unknown flow id "+req.FlowID))
		return req, false
	}
	if req.LotID == nil && req.Keyword == "" && req.NamePattern == "" {
		httpkit.Error(c, apperr.Validation("binding needs a lot id, keyword or name pattern"))
		return req, false
	}
	return req, true
}

func (m *Module) getSettings(c *gin.Context) {
	s, err := m.settings.Get(c.Request.Context())
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, toSettingsResponse(s))
}

func (m *Module) updateSettings(c *gin.Context) {
	var req settingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, apperr.BadRequest("invalid settings payload"))
		return
	}
	s := req.toSettings()
	if err := m.settings.Update(c.Request.Context(), s); err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, toSettingsResponse(s))
}

func (m *Module) listStats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	items, err := m.stats.Recent(c.Request.Context(), limit)
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, gin.H{"snapshots": items})
}

func (m *Module) reconcile(c *gin.Context) {
	res, err := m.reconciler.Run(c.Request.Context())
	if err != nil {
		httpkit.Error(c, err)
		return
	}
	httpkit.OK(c, res)
}

// NewRouter builds the gin engine with the standard middleware stack.
func NewRouter(env string, httpCfg config.HTTPConfig, log *logger.Logger) *gin.Engine {
	if env != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		gin.Recovery(),
		httpkit.RequestID(),
		httpkit.RequestLogger(log),
		httpkit.SecurityHeaders(),
		httpkit.CORS(httpCfg),
	)
	return r
}
