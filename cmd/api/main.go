package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"siakad/internal/attendance"
	"siakad/internal/auth"
	"siakad/internal/billing"
	"siakad/internal/config"
	"siakad/internal/httpmiddleware"
	"siakad/internal/metrics"
	"siakad/internal/notify"
	"siakad/internal/queue"
	"siakad/internal/roster"
	"siakad/internal/store"
	"siakad/internal/token"
)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func runHTTP(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// The unique indexes are the idempotency guarantee; they must be in
	// place before the first request is served.
	if err := store.Migrate(context.Background(), db.Client); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "siakad:notifications")
	}

	codec := token.NewCodec(cfg.QRSecretKey, cfg.QRTokenTTL)
	rosterRepo := roster.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	attSvc := attendance.NewService(codec, attRepo, rosterRepo)
	billRepo := billing.NewRepository(db.Client)
	billSvc := billing.NewService(billRepo, rosterRepo)

	metrics.Register()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewSimpleTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	studentGroup := r.Group("/v1", auth.RequireRoles(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleStudent))
	staffGroup := r.Group("/v1", auth.RequireRoles(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleTeacher, auth.RoleAdmin))
	adminGroup := r.Group("/v1", auth.RequireRoles(cfg.JWTSigningKey, cfg.JWTIssuer, auth.RoleAdmin))

	// A student's rotating proof-of-presence token. The QR on their screen
	// re-fetches this every refresh; each token is scannable for one window.
	studentGroup.GET("/attendance/qr-token", func(c *gin.Context) {
		claims := mustClaims(c)
		now := time.Now().UTC()
		raw, err := attSvc.IssueToken(claims.Subject, now)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": raw, "issued_at": now})
	})

	staffGroup.POST("/attendance/scan", func(c *gin.Context) {
		var req struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		claims := mustClaims(c)

		res, err := attSvc.ScanQR(c.Request.Context(), req.Token, claims.Subject, time.Now().UTC())
		if err != nil {
			outcome, status, msg := scanFailure(err)
			metrics.ScanOutcomes.WithLabelValues(outcome).Inc()
			c.JSON(status, gin.H{"error": msg, "reason": outcome})
			return
		}

		if res.AlreadyPresent {
			metrics.ScanOutcomes.WithLabelValues("already_present").Inc()
			c.JSON(http.StatusOK, gin.H{
				"message":         "student already checked in today",
				"already_present": true,
				"student":         res.Student,
				"record":          res.Record,
			})
			return
		}

		metrics.ScanOutcomes.WithLabelValues("marked").Inc()
		metrics.AttendanceMarks.WithLabelValues("daily", string(res.Record.Status)).Inc()
		notify.Publish(c.Request.Context(), q, notify.Event{
			Kind:      "attendance",
			StudentID: res.Student.ID,
			Message:   res.Student.FullName + " checked in",
			At:        time.Now().UTC(),
		})

		c.JSON(http.StatusCreated, gin.H{
			"message":         "attendance recorded",
			"already_present": false,
			"student":         res.Student,
			"record":          res.Record,
		})
	})

	staffGroup.POST("/attendance/batch", func(c *gin.Context) {
		var req struct {
			ClassID        string                  `json:"class_id" binding:"required"`
			AcademicYearID string                  `json:"academic_year_id" binding:"required"`
			ScheduleID     string                  `json:"schedule_id"`
			Date           string                  `json:"date" binding:"required"`
			Entries        []attendance.BatchEntry `json:"records" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		date, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		claims := mustClaims(c)

		res, err := attSvc.MarkBatch(c.Request.Context(), attendance.BatchRequest{
			ClassID:        req.ClassID,
			AcademicYearID: req.AcademicYearID,
			ScheduleID:     req.ScheduleID,
			Date:           date,
			RecordedBy:     claims.Subject,
			Entries:        req.Entries,
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		family := "daily"
		if req.ScheduleID != "" {
			family = "lesson"
		}
		metrics.AttendanceMarks.WithLabelValues(family, "batch").Add(float64(res.Created))
		c.JSON(http.StatusOK, res)
	})

	staffGroup.GET("/attendance", func(c *gin.Context) {
		date, err := time.Parse("2006-01-02", c.DefaultQuery("date", time.Now().UTC().Format("2006-01-02")))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		if scheduleID := c.Query("schedule_id"); scheduleID != "" {
			records, err := attRepo.ListLesson(c.Request.Context(), scheduleID, date)
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"records": records})
			return
		}
		classID := c.Query("class_id")
		if classID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "class_id or schedule_id required"})
			return
		}
		records, err := attRepo.ListDaily(c.Request.Context(), classID, date)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"records": records})
	})

	staffGroup.GET("/attendance/summary/:studentID", func(c *gin.Context) {
		summary, err := attRepo.StudentSummary(c.Request.Context(), c.Param("studentID"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, summary)
	})

	adminGroup.POST("/billing/cycles", func(c *gin.Context) {
		var req struct {
			Title   string        `json:"title" binding:"required"`
			Amount  int64         `json:"amount" binding:"required"`
			DueDate string        `json:"due_date" binding:"required"`
			Target  roster.Target `json:"target"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		dueDate, err := time.Parse("2006-01-02", req.DueDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
			return
		}

		res, err := billSvc.GenerateCycle(c.Request.Context(), billing.CycleDefinition{
			Title:   req.Title,
			Amount:  req.Amount,
			DueDate: dueDate,
			Target:  req.Target,
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		metrics.BillsGenerated.WithLabelValues("created").Add(float64(res.Created))
		metrics.BillsGenerated.WithLabelValues("skipped").Add(float64(res.Skipped))
		notify.Publish(c.Request.Context(), q, notify.Event{
			Kind:    "billing",
			Message: res.Title,
			At:      time.Now().UTC(),
		})

		c.JSON(http.StatusOK, res)
	})

	adminGroup.GET("/billing/aging", func(c *gin.Context) {
		asOf := time.Now().UTC()
		if v := c.Query("as_of"); v != "" {
			parsed, err := time.Parse("2006-01-02", v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "as_of must be YYYY-MM-DD"})
				return
			}
			asOf = parsed
		}
		rows, err := billSvc.AgingReport(c.Request.Context(), asOf)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"as_of": asOf.Format("2006-01-02"), "rows": rows})
	})

	adminGroup.GET("/billing/bills", func(c *gin.Context) {
		bills, err := billRepo.List(c.Request.Context(), billing.ListFilter{
			StudentID: c.Query("student_id"),
			Status:    billing.BillStatus(c.Query("status")),
			Title:     c.Query("title"),
		})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bills": bills})
	})

	// Students see only their own bills.
	studentGroup.GET("/billing/my-bills", func(c *gin.Context) {
		claims := mustClaims(c)
		bills, err := billRepo.List(c.Request.Context(), billing.ListFilter{StudentID: claims.Subject})
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"bills": bills})
	})

	adminGroup.POST("/billing/bills/:id/pay", func(c *gin.Context) {
		err := billRepo.MarkPaid(c.Request.Context(), c.Param("id"), time.Now().UTC())
		if err != nil {
			c.JSON(billErrStatus(err), gin.H{"error": err.Error()})
			return
		}
		bill, err := billRepo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, bill)
	})

	adminGroup.POST("/billing/bills/:id/cancel", func(c *gin.Context) {
		err := billRepo.Cancel(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(billErrStatus(err), gin.H{"error": err.Error()})
			return
		}
		bill, err := billRepo.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, bill)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// scanFailure maps each gate's error to its reason label, HTTP status and
// operator-facing message. A stale badge, a corrupt scan and a student with
// no class are different problems and must read differently.
func scanFailure(err error) (outcome string, status int, msg string) {
	switch {
	case errors.Is(err, attendance.ErrMissingToken):
		return "missing_token", http.StatusBadRequest, "token required"
	case errors.Is(err, token.ErrExpired):
		return "expired", http.StatusBadRequest, "QR code expired, ask the student to refresh"
	case errors.Is(err, token.ErrMalformed):
		return "malformed", http.StatusBadRequest, "QR code invalid or corrupted"
	case errors.Is(err, attendance.ErrUnknownStudent):
		return "unknown_student", http.StatusNotFound, "student not found"
	case errors.Is(err, attendance.ErrNoActiveYear):
		return "no_active_year", http.StatusConflict, "no active academic year configured"
	case errors.Is(err, attendance.ErrNoClassAssignment):
		return "no_class", http.StatusConflict, "student has no valid class assignment"
	default:
		return "error", http.StatusInternalServerError, "scan processing failed"
	}
}

func billErrStatus(err error) int {
	switch {
	case errors.Is(err, billing.ErrBillNotFound):
		return http.StatusNotFound
	case errors.Is(err, billing.ErrNotUnpaid):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func mustClaims(c *gin.Context) auth.Claims {
	claimsAny, _ := c.Get("claims")
	claims, _ := claimsAny.(auth.Claims)
	return claims
}

// CORS middleware for browser requests
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

// Security headers middleware
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
