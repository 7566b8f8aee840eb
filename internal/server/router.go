package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dcdock/dcdock/internal/audit"
	"github.com/dcdock/dcdock/internal/auth"
	"github.com/dcdock/dcdock/internal/dock"
	"github.com/dcdock/dcdock/internal/realtime"
	"github.com/dcdock/dcdock/internal/users"
)

const principalContextKey = "dcdock_principal"

var (
	errMissingDatabase      = errors.New("database dependency required")
	errMissingTokenManager  = errors.New("token manager dependency required")
	errMissingUserService   = errors.New("user service dependency required")
	errMissingDockService   = errors.New("dock service dependency required")
	errMissingHub           = errors.New("realtime hub dependency required")
	errInvalidAuthorization = errors.New("authorization header missing or invalid")
)

// Dependencies carries everything the HTTP surface needs.
type Dependencies struct {
	Database     *gorm.DB
	TokenManager *auth.TokenIssuer
	UserService  *users.Service
	DockService  *dock.Service
	Hub          *realtime.Hub
	Logger       *zap.Logger
}

// NewHTTPHandler builds the full API router.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Database == nil {
		return nil, errMissingDatabase
	}
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UserService == nil {
		return nil, errMissingUserService
	}
	if deps.DockService == nil {
		return nil, errMissingDockService
	}
	if deps.Hub == nil {
		return nil, errMissingHub
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	handler := &httpHandler{
		db:     deps.Database,
		tokens: deps.TokenManager,
		users:  deps.UserService,
		dock:   deps.DockService,
		hub:    deps.Hub,
		logger: logger,
	}

	router.GET("/", handler.handleRoot)
	router.GET("/health", handler.handleHealth)

	api := router.Group("/api")
	api.POST("/auth/login", handler.handleLogin)
	api.GET("/ws", handler.handleWebSocket)

	protected := api.Group("/")
	protected.Use(handler.authorizeRequest)

	protected.GET("/users/me", handler.handleCurrentUser)
	protected.GET("/users", handler.requireAdmin, handler.handleListUsers)
	protected.POST("/users", handler.requireAdmin, handler.handleCreateUser)
	protected.GET("/users/:id", handler.requireAdmin, handler.handleGetUser)
	protected.PATCH("/users/:id", handler.requireAdmin, handler.handleUpdateUser)

	protected.GET("/ramps", handler.handleListRamps)
	protected.GET("/ramps/:id", handler.handleGetRamp)
	protected.POST("/ramps", handler.requireAdmin, handler.handleCreateRamp)
	protected.PATCH("/ramps/:id", handler.requireAdmin, handler.handleUpdateRamp)
	protected.DELETE("/ramps/:id", handler.requireAdmin, handler.handleDeleteRamp)

	protected.GET("/loads", handler.handleListLoads)
	protected.GET("/loads/:id", handler.handleGetLoad)
	protected.POST("/loads", handler.requireAdmin, handler.handleCreateLoad)
	protected.PATCH("/loads/:id", handler.requireAdmin, handler.handleUpdateLoad)
	protected.DELETE("/loads/:id", handler.requireAdmin, handler.handleDeleteLoad)

	protected.GET("/statuses", handler.handleListStatuses)
	protected.GET("/statuses/:id", handler.handleGetStatus)
	protected.POST("/statuses", handler.requireAdmin, handler.handleCreateStatus)
	protected.PATCH("/statuses/:id", handler.requireAdmin, handler.handleUpdateStatus)
	protected.DELETE("/statuses/:id", handler.requireAdmin, handler.handleDeleteStatus)

	protected.GET("/assignments", handler.handleListAssignments)
	protected.GET("/assignments/:id", handler.handleGetAssignment)
	protected.POST("/assignments", handler.handleCreateAssignment)
	protected.PATCH("/assignments/:id", handler.handleUpdateAssignment)
	protected.DELETE("/assignments/:id", handler.handleDeleteAssignment)

	protected.GET("/audit", handler.requireAdmin, handler.handleListAudit)
	protected.GET("/ws/stats", handler.handleWebSocketStats)

	return router, nil
}

type httpHandler struct {
	db     *gorm.DB
	tokens *auth.TokenIssuer
	users  *users.Service
	dock   *dock.Service
	hub    *realtime.Hub
	logger *zap.Logger
}

type loginRequestPayload struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponsePayload struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (h *httpHandler) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to DCDock API"})
}

// handleHealth answers liveness probes without touching the database.
func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), request.Email, request.Password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "incorrect email or password"})
		return
	}
	if errors.Is(err, users.ErrInactiveUser) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "inactive user"})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login_failed"})
		return
	}

	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), auth.Principal{
		UserID: user.ID,
		Email:  user.Email,
		Role:   string(user.Role),
	})
	if err != nil {
		h.logger.Error("failed to issue token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token_issue_failed"})
		return
	}

	c.JSON(http.StatusOK, loginResponsePayload{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   expiresIn,
	})
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error()})
		return
	}
	principal, err := h.tokens.ValidateToken(token)
	if err != nil {
		h.logger.Warn("token validation failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.Set(principalContextKey, principal)
	c.Next()
}

func (h *httpHandler) requireAdmin(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok || principal.Role != string(users.RoleAdmin) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
		return
	}
	c.Next()
}

func currentPrincipal(c *gin.Context) (auth.Principal, bool) {
	value, exists := c.Get(principalContextKey)
	if !exists {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}

func currentActor(c *gin.Context) (dock.Actor, bool) {
	principal, ok := currentPrincipal(c)
	if !ok {
		return dock.Actor{}, false
	}
	return dock.Actor{ID: principal.UserID, Email: principal.Email}, true
}

func (h *httpHandler) handleCurrentUser(c *gin.Context) {
	principal, ok := currentPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), principal.UserID)
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load current user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleListUsers(c *gin.Context) {
	all, err := h.users.List(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, all)
}

type createUserPayload struct {
	Email    string `json:"email" binding:"required"`
	FullName string `json:"full_name" binding:"required"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"role"`
}

func (h *httpHandler) handleCreateUser(c *gin.Context) {
	var request createUserPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	role := users.RoleOperator
	if request.Role != "" {
		parsed, err := users.ParseRole(request.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
			return
		}
		role = parsed
	}

	user, err := h.users.Create(c.Request.Context(), users.CreateInput{
		Email:    request.Email,
		FullName: request.FullName,
		Password: request.Password,
		Role:     role,
	})
	if errors.Is(err, users.ErrEmailTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_failed"})
		return
	}
	c.JSON(http.StatusCreated, user)
}

func (h *httpHandler) handleGetUser(c *gin.Context) {
	id, ok := parsePathID(c)
	if !ok {
		return
	}
	user, err := h.users.GetByID(c.Request.Context(), id)
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		h.logger.Error("failed to load user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, user)
}

type updateUserPayload struct {
	Email    *string `json:"email"`
	FullName *string `json:"full_name"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (h *httpHandler) handleUpdateUser(c *gin.Context) {
	id, ok := parsePathID(c)
	if !ok {
		return
	}

	var request updateUserPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}

	input := users.UpdateInput{
		Email:    request.Email,
		FullName: request.FullName,
		Password: request.Password,
		IsActive: request.IsActive,
	}
	if request.Role != nil {
		parsed, err := users.ParseRole(*request.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_role"})
			return
		}
		input.Role = &parsed
	}

	user, err := h.users.Update(c.Request.Context(), id, input)
	if errors.Is(err, users.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if errors.Is(err, users.ErrEmailTaken) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "email already registered"})
		return
	}
	if err != nil {
		h.logger.Error("failed to update user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update_failed"})
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleListAudit(c *gin.Context) {
	query := audit.Query{
		EntityType: c.Query("entity_type"),
		EntityID:   parseQueryInt64(c, "entity_id"),
		UserID:     parseQueryInt64(c, "user_id"),
		Limit:      int(parseQueryInt64(c, "limit")),
		Offset:     int(parseQueryInt64(c, "offset")),
	}
	logs, err := audit.List(c.Request.Context(), h.db, query)
	if err != nil {
		h.logger.Error("failed to list audit trail", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query_failed"})
		return
	}
	c.JSON(http.StatusOK, logs)
}
