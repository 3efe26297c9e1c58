package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"qrattend/internal/alerting"
	"qrattend/internal/analytics"
	"qrattend/internal/attendance"
	"qrattend/internal/cloudinary"
	"qrattend/internal/qrcode"
	"qrattend/internal/scanner"
	"qrattend/internal/student"
)

// Server groups the handlers over the domain services.
type Server struct {
	Students  *student.Service
	Ledger    *attendance.Service
	Session   *scanner.Session
	Analytics *analytics.Service
	Alerts    *alerting.Service
	CDN       *cloudinary.Client // nil when not configured

	AlertThreshold int
}

// Register mounts the authenticated API routes.
func (s *Server) Register(r *gin.RouterGroup) {
	r.GET("/students", s.listStudents)
	r.POST("/students", s.createStudent)
	r.GET("/students/:id", s.getStudent)
	r.PUT("/students/:id", s.updateStudent)
	r.DELETE("/students/:id", s.deleteStudent)
	r.GET("/departments", s.listDepartments)

	r.GET("/students/:id/attendance", s.studentAttendance)
	r.GET("/students/:id/attendance/stats", s.studentStats)
	r.GET("/students/:id/qrcode", s.studentQR)
	r.GET("/students/:id/qrcode.png", s.studentQRPNG)
	r.POST("/students/:id/qrcode/publish", s.publishQR)

	r.POST("/attendance", s.markAttendance)
	r.GET("/attendance", s.listAttendance)

	r.POST("/scans", s.submitScan)
	r.GET("/scans/log", s.scanLog)

	r.GET("/analytics/dashboard", s.analyticsDashboard)
	r.GET("/analytics/departments", s.analyticsDepartments)
	r.GET("/analytics/trend", s.analyticsTrend)
	r.GET("/analytics/ranking", s.analyticsRanking)

	r.POST("/alerts/run", s.runAlerts)
}

func (s *Server) listStudents(c *gin.Context) {
	var (
		students []student.Student
		err      error
	)
	if dept := c.Query("department"); dept != "" {
		students, err = s.Students.ListByDepartment(c.Request.Context(), dept)
	} else {
		students, err = s.Students.ListAll(c.Request.Context())
	}
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

func (s *Server) getStudent(c *gin.Context) {
	st, err := s.Students.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) createStudent(c *gin.Context) {
	var f student.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := s.Students.Create(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) updateStudent(c *gin.Context) {
	var f student.Fields
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := s.Students.Update(c.Request.Context(), c.Param("id"), f)
	if errors.Is(err, student.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) deleteStudent(c *gin.Context) {
	err := s.Students.Delete(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		backendError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) listDepartments(c *gin.Context) {
	departments, err := s.Students.ListDepartments(c.Request.Context())
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": departments})
}

func (s *Server) studentAttendance(c *gin.Context) {
	records, err := s.Ledger.ListForStudent(c.Request.Context(), c.Param("id"), attendance.StudentFilter{
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Limit:     intQuery(c, "limit", 0),
	})
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) studentStats(c *gin.Context) {
	stats, err := s.Ledger.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) markAttendance(c *gin.Context) {
	var req struct {
		StudentID string `json:"student_id" binding:"required"`
		Lecture   string `json:"lecture_name"`
		Status    string `json:"status"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if _, err := s.Students.Get(c.Request.Context(), req.StudentID); err != nil {
		if errors.Is(err, student.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
			return
		}
		backendError(c, err)
		return
	}
	rec, err := s.Ledger.Mark(c.Request.Context(), req.StudentID, req.Lecture, req.Status)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, rec)
}

func (s *Server) listAttendance(c *gin.Context) {
	records, err := s.Ledger.ListAll(c.Request.Context(), attendance.Filter{
		Department: c.Query("department"),
		Date:       c.Query("date"),
		Lecture:    c.Query("lecture"),
		Status:     c.Query("status"),
		Limit:      intQuery(c, "limit", 0),
	})
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

func (s *Server) studentQR(c *gin.Context) {
	st, err := s.Students.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		backendError(c, err)
		return
	}
	payload, err := qrcode.Encode(st, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"payload": payload, "student": st})
}

func (s *Server) studentQRPNG(c *gin.Context) {
	st, err := s.Students.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		backendError(c, err)
		return
	}
	payload, err := qrcode.Encode(st, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	png, err := qrcode.RenderPNG(payload, intQuery(c, "size", 256))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (s *Server) publishQR(c *gin.Context) {
	if s.CDN == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "image storage not configured"})
		return
	}
	st, err := s.Students.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, student.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "student not found"})
		return
	}
	if err != nil {
		backendError(c, err)
		return
	}
	payload, err := qrcode.Encode(st, time.Now())
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	png, err := qrcode.RenderPNG(payload, intQuery(c, "size", 512))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "qr render failed"})
		return
	}
	result, err := s.CDN.UploadQRPNG(png, st.ID)
	if err != nil {
		logrus.Errorf("qr publish for %s failed: %v", st.ID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "image upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": result.SecureURL, "public_id": result.PublicID})
}

func (s *Server) submitScan(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := s.Session.SubmitCode(c.Request.Context(), req.Code)
	if err != nil {
		if de := qrcode.AsDecodeError(err); de != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code", "kind": string(de.Kind)})
			return
		}
		if re := scanner.AsResolutionError(err); re != nil {
			switch re.Kind {
			case scanner.DuplicateForToday:
				c.JSON(http.StatusConflict, gin.H{
					"error": "already marked present today",
					"kind":  string(re.Kind),
					"name":  re.Name,
				})
			default:
				c.JSON(http.StatusNotFound, gin.H{"error": "student not found", "kind": string(re.Kind)})
			}
			return
		}
		backendError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (s *Server) scanLog(c *gin.Context) {
	log, stats := s.Session.Snapshot()
	c.JSON(http.StatusOK, gin.H{"state": s.Session.State(), "stats": stats, "log": log})
}

func (s *Server) analyticsDashboard(c *gin.Context) {
	dash, err := s.Analytics.Dashboard(c.Request.Context(), intQuery(c, "months", 6))
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (s *Server) analyticsDepartments(c *gin.Context) {
	stats, err := s.Analytics.DepartmentStats(c.Request.Context())
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"departments": stats})
}

func (s *Server) analyticsTrend(c *gin.Context) {
	trend, err := s.Analytics.Trend(c.Request.Context(), intQuery(c, "months", 6))
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"trend": trend})
}

func (s *Server) analyticsRanking(c *gin.Context) {
	top, low, err := s.Analytics.Ranking(c.Request.Context())
	if err != nil {
		backendError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"top_performers": top, "low_attendees": low})
}

func (s *Server) runAlerts(c *gin.Context) {
	threshold := intQuery(c, "threshold", s.AlertThreshold)
	outcomes, err := s.Alerts.CheckAndSendAlerts(c.Request.Context(), threshold)
	if err != nil {
		backendError(c, err)
		return
	}
	sent := 0
	for _, o := range outcomes {
		if o.Sent {
			sent++
		}
	}
	c.JSON(http.StatusOK, gin.H{"threshold": threshold, "sent": sent, "outcomes": outcomes})
}

// backendError reports a directory/ledger failure as a retryable 500.
func backendError(c *gin.Context, err error) {
	logrus.Errorf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "backend error, please retry"})
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
