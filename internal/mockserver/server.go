// Package mockserver is an in-memory stand-in for the todo backend. It
// speaks the same envelope protocol as production and supports fault
// injection, so the client stack can be exercised end to end without a real
// deployment.
package mockserver

import (
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"github.com/taskdeck/taskdeck/pkg/models"
	"github.com/taskdeck/taskdeck/pkg/observability"
)

// Config tunes the mock server.
type Config struct {
	// JWTSecret signs session tokens. A default is generated when empty.
	JWTSecret string

	// TokenTTL bounds session lifetime.
	TokenTTL time.Duration

	// FailRate injects random 500s: 0 never, 1 always.
	FailRate float64

	// Latency delays every response.
	Latency time.Duration

	Logger observability.Logger
}

// Server holds the in-memory state behind the mock API.
type Server struct {
	cfg    Config
	logger observability.Logger

	mu    sync.Mutex
	users map[string]*userRecord // by username
	tasks []*models.Task

	engine *gin.Engine
}

type userRecord struct {
	ID       string
	Username string
	Email    string
	Password string
}

// New creates a mock server and registers its routes.
func New(cfg Config) *Server {
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = uuid.NewString()
	}
	if cfg.TokenTTL == 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		users:  make(map[string]*userRecord),
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.faults())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
	})

	authAPI := router.Group("/api/auth")
	{
		authAPI.POST("/register", s.register)
		authAPI.POST("/login", s.login)
		authAPI.POST("/logout", s.requireAuth, s.logout)
		authAPI.GET("/me", s.requireAuth, s.me)
	}

	todos := router.Group("/api/todos", s.requireAuth)
	{
		todos.GET("", s.listTasks)
		todos.GET("/search", s.searchTasks)
		todos.POST("", s.createTask)
		todos.PUT("/reorder", s.reorderTasks)
		todos.PUT("/:id", s.updateTask)
		todos.DELETE("/:id", s.deleteTask)
	}

	s.engine = router
	return s
}

// Handler returns the HTTP handler, for mounting under httptest or a server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// faults applies the configured latency and random failure injection.
func (s *Server) faults() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.Latency > 0 {
			time.Sleep(s.cfg.Latency)
		}
		if s.cfg.FailRate > 0 && c.Request.URL.Path != "/health" && rand.Float64() < s.cfg.FailRate {
			s.logger.Warn("injecting failure", map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			})
			s.fail(c, http.StatusInternalServerError, "injected failure", "FAULT_INJECTED", "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (s *Server) ok(c *gin.Context, status int, data interface{}, count int) {
	body := gin.H{"success": true}
	if data != nil {
		body["data"] = data
	}
	if count >= 0 {
		body["count"] = count
	}
	c.JSON(status, body)
}

func (s *Server) fail(c *gin.Context, status int, message, code, field string) {
	apiErr := gin.H{"message": message}
	if code != "" {
		apiErr["code"] = code
	}
	if field != "" {
		apiErr["field"] = field
	}
	c.JSON(status, gin.H{"success": false, "error": apiErr})
}

// requireAuth validates the bearer token and stores the user id in the
// request context.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		s.fail(c, http.StatusUnauthorized, "authentication required", "UNAUTHENTICATED", "")
		c.Abort()
		return
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		s.fail(c, http.StatusUnauthorized, "invalid or expired token", "UNAUTHENTICATED", "")
		c.Abort()
		return
	}

	c.Set("userID", claims.Subject)
	c.Next()
}

func (s *Server) issueToken(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	})
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", "BAD_REQUEST", "")
		return
	}
	if strings.TrimSpace(req.Username) == "" || req.Password == "" {
		s.fail(c, http.StatusBadRequest, "username and password are required", "VALIDATION", "username")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		s.fail(c, http.StatusBadRequest, "username is already taken", "DUPLICATE", "username")
		return
	}

	user := &userRecord{
		ID:       uuid.NewString(),
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	}
	s.users[req.Username] = user
	s.logger.Info("user registered", map[string]interface{}{"username": user.Username})

	token, err := s.issueToken(user.ID)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to issue token", "INTERNAL", "")
		return
	}
	s.ok(c, http.StatusCreated, models.AuthResponse{
		Token: token,
		User:  models.User{ID: user.ID, Username: user.Username, Email: user.Email},
	}, -1)
}

func (s *Server) login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", "BAD_REQUEST", "")
		return
	}

	s.mu.Lock()
	user, exists := s.users[req.Username]
	s.mu.Unlock()
	if !exists || user.Password != req.Password {
		s.fail(c, http.StatusUnauthorized, "invalid username or password", "UNAUTHENTICATED", "")
		return
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, "failed to issue token", "INTERNAL", "")
		return
	}
	s.ok(c, http.StatusOK, models.AuthResponse{
		Token: token,
		User:  models.User{ID: user.ID, Username: user.Username, Email: user.Email},
	}, -1)
}

func (s *Server) logout(c *gin.Context) {
	// Tokens are stateless; logout succeeds so clients can clear local state.
	s.ok(c, http.StatusOK, nil, -1)
}

func (s *Server) me(c *gin.Context) {
	userID := c.GetString("userID")

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == userID {
			s.ok(c, http.StatusOK, models.User{ID: user.ID, Username: user.Username, Email: user.Email}, -1)
			return
		}
	}
	s.fail(c, http.StatusUnauthorized, "unknown user", "UNAUTHENTICATED", "")
}

func (s *Server) listTasks(c *gin.Context) {
	userID := c.GetString("userID")

	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.filter(userID, c.Query("category"), c.Query("priority"), c.Query("completed"), "")
	s.ok(c, http.StatusOK, matched, len(matched))
}

func (s *Server) searchTasks(c *gin.Context) {
	userID := c.GetString("userID")
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		s.fail(c, http.StatusBadRequest, "search query must not be empty", "VALIDATION", "q")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	matched := s.filter(userID, c.Query("category"), c.Query("priority"), c.Query("completed"), query)
	s.ok(c, http.StatusOK, matched, len(matched))
}

// filter selects the caller's tasks matching the query parameters, newest
// first by order. Caller holds s.mu.
func (s *Server) filter(userID, category, priority, completed, query string) []*models.Task {
	query = strings.ToLower(query)
	matched := make([]*models.Task, 0)
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if category != "" && string(t.Category) != category {
			continue
		}
		if priority != "" && string(t.Priority) != priority {
			continue
		}
		if completed == "true" && !t.Completed {
			continue
		}
		if completed == "false" && t.Completed {
			continue
		}
		if query != "" && !matchesQuery(t, query) {
			continue
		}
		matched = append(matched, t.Clone())
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Order < matched[j].Order })
	return matched
}

func matchesQuery(t *models.Task, query string) bool {
	if strings.Contains(strings.ToLower(t.Text), query) {
		return true
	}
	for _, tag := range t.Tags {
		if strings.Contains(strings.ToLower(tag), query) {
			return true
		}
	}
	return false
}

func (s *Server) createTask(c *gin.Context) {
	userID := c.GetString("userID")

	var req models.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", "BAD_REQUEST", "")
		return
	}

	now := time.Now()
	task := &models.Task{
		ID:        uuid.NewString(),
		Text:      strings.TrimSpace(req.Text),
		Category:  req.Category,
		Priority:  req.Priority,
		DueDate:   req.DueDate,
		Tags:      req.Tags,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := task.Validate(); err != nil {
		s.fail(c, http.StatusBadRequest, err.Error(), "VALIDATION", "text")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// New tasks go on top: shift everything down one position.
	for _, existing := range s.tasks {
		if existing.UserID == userID {
			existing.Order++
		}
	}
	task.Order = 0
	s.tasks = append(s.tasks, task)

	s.ok(c, http.StatusCreated, task.Clone(), -1)
}

func (s *Server) updateTask(c *gin.Context) {
	userID := c.GetString("userID")
	id := c.Param("id")

	var req models.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", "BAD_REQUEST", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task := s.find(userID, id)
	if task == nil {
		s.fail(c, http.StatusNotFound, "task not found", "NOT_FOUND", "id")
		return
	}

	if req.Text != nil {
		trimmed := strings.TrimSpace(*req.Text)
		probe := models.Task{Text: trimmed}
		if err := probe.Validate(); err != nil {
			s.fail(c, http.StatusBadRequest, err.Error(), "VALIDATION", "text")
			return
		}
		task.Text = trimmed
	}
	if req.Completed != nil {
		task.Completed = *req.Completed
	}
	if req.Category != nil {
		if *req.Category != "" && !req.Category.IsValid() {
			s.fail(c, http.StatusBadRequest, "unknown category", "VALIDATION", "category")
			return
		}
		task.Category = *req.Category
	}
	if req.Priority != nil {
		if *req.Priority != "" && !req.Priority.IsValid() {
			s.fail(c, http.StatusBadRequest, "unknown priority", "VALIDATION", "priority")
			return
		}
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.Tags != nil {
		task.Tags = append([]string(nil), req.Tags...)
	}
	if req.Order != nil {
		task.Order = *req.Order
	}
	task.UpdatedAt = time.Now()

	s.ok(c, http.StatusOK, task.Clone(), -1)
}

func (s *Server) deleteTask(c *gin.Context) {
	userID := c.GetString("userID")
	id := c.Param("id")

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id && t.UserID == userID {
			removed := t.Clone()
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			s.ok(c, http.StatusOK, removed, -1)
			return
		}
	}
	s.fail(c, http.StatusNotFound, "task not found", "NOT_FOUND", "id")
}

func (s *Server) reorderTasks(c *gin.Context) {
	userID := c.GetString("userID")

	var req models.ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, http.StatusBadRequest, "invalid request body", "BAD_REQUEST", "")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mine := make(map[string]*models.Task)
	for _, t := range s.tasks {
		if t.UserID == userID {
			mine[t.ID] = t
		}
	}
	if len(req.TaskOrders) != len(mine) {
		s.fail(c, http.StatusBadRequest, "reorder must cover every task exactly once", "VALIDATION", "todoOrders")
		return
	}
	seen := make(map[string]bool, len(req.TaskOrders))
	for _, order := range req.TaskOrders {
		if _, ok := mine[order.ID]; !ok || seen[order.ID] {
			s.fail(c, http.StatusBadRequest, "reorder must cover every task exactly once", "VALIDATION", "todoOrders")
			return
		}
		seen[order.ID] = true
	}

	now := time.Now()
	result := make([]*models.Task, 0, len(req.TaskOrders))
	for _, order := range req.TaskOrders {
		task := mine[order.ID]
		task.Order = order.Order
		task.UpdatedAt = now
		result = append(result, task.Clone())
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].Order < result[j].Order })

	s.ok(c, http.StatusOK, result, len(result))
}

// find returns the caller's task with the given id. Caller holds s.mu.
func (s *Server) find(userID, id string) *models.Task {
	for _, t := range s.tasks {
		if t.ID == id && t.UserID == userID {
			return t
		}
	}
	return nil
}
