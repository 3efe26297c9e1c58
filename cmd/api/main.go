package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"qrattend/internal/alerting"
	"qrattend/internal/analytics"
	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/cloudinary"
	"qrattend/internal/config"
	"qrattend/internal/httpapi"
	"qrattend/internal/httpmiddleware"
	"qrattend/internal/queue"
	"qrattend/internal/scanner"
	"qrattend/internal/smsclient"
	"qrattend/internal/store"
	"qrattend/internal/student"
	"qrattend/internal/ws"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		logrus.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		logrus.Warnf("db not reachable: %v", err)
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:scans")
	}

	students := student.NewService(student.NewRepository(db.Client))
	ledger := attendance.NewService(attendance.NewRepository(db.Client), cfg.DefaultLecture)
	sms := smsclient.New(cfg.SMSFunctionURL, cfg.SMSFunctionKey, cfg.SMSSkip)
	alerts := alerting.NewService(alertRoster{students}, ledger, sms)
	stats := analytics.NewService(students, ledger)

	hub := ws.NewHub()
	go hub.Run()

	session := scanner.NewSession(scanRoster{students}, ledger, cfg.DefaultLecture)
	ctx := context.Background()
	session.OnSuccess = func(res scanner.Result) {
		hub.Broadcast("attendance:new", res)
		msg, err := queue.NewMessage("scan", scanner.Notice{
			StudentID: res.Student.ID,
			RecordID:  res.Record.ID,
			Date:      res.Record.Date,
		})
		if err == nil {
			err = q.Publish(ctx, msg)
		}
		if err != nil {
			logrus.Errorf("scan notice publish failed: %v", err)
		}
	}

	// Cloudinary client (nil when not configured)
	var cdnClient *cloudinary.Client
	if cfg.CloudinaryCloudName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		cdnClient = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
		logrus.Infof("cloudinary configured: %s", cfg.CloudinaryCloudName)
	} else {
		logrus.Info("cloudinary not configured, QR publishing disabled")
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin).Gin())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db != nil && db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	r.GET("/ws", func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request)
	})

	r.POST("/v1/devices/register", func(c *gin.Context) {
		var req struct {
			DeviceID string `json:"device_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		tokens, err := auth.Issue(req.DeviceID, auth.RoleDevice, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	api := &httpapi.Server{
		Students:       students,
		Ledger:         ledger,
		Session:        session,
		Analytics:      stats,
		Alerts:         alerts,
		CDN:            cdnClient,
		AlertThreshold: cfg.AlertThreshold,
	}
	api.Register(r.Group("/v1", auth.Require(cfg.JWTSigningKey, cfg.JWTIssuer)))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("shutting down server...")

	session.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("server forced shutdown: %v", err)
	}

	logrus.Info("server exited")
	return nil
}

// scanRoster adapts the student service to the scanner's lookup interface,
// which wants a nil result instead of ErrNotFound.
type scanRoster struct {
	students *student.Service
}

func (r scanRoster) GetByID(ctx context.Context, id string) (*student.Student, error) {
	st, err := r.students.Get(ctx, id)
	if err == student.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// alertRoster adapts the student service to the alerting roster interface.
type alertRoster struct {
	students *student.Service
}

func (r alertRoster) ListAll(ctx context.Context) ([]student.Student, error) {
	return r.students.ListAll(ctx)
}

func (r alertRoster) GetByID(ctx context.Context, id string) (*student.Student, error) {
	return scanRoster{r.students}.GetByID(ctx, id)
}

// CORS middleware for browser dashboards.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
