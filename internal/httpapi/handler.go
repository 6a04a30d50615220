// Package httpapi exposes the service over HTTP. Handlers bind and
// validate requests, resolve the caller's identity, and delegate every
// decision to the domain services.
package httpapi

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"classattend/internal/apperr"
	"classattend/internal/attendance"
	"classattend/internal/auth"
	"classattend/internal/course"
	"classattend/internal/media"
	"classattend/internal/student"
)

// Handler wires the domain services to gin routes.
type Handler struct {
	auth       *auth.Service
	courses    *course.Service
	students   *student.Service
	attendance *attendance.Service
	media      *media.Store

	exportDir        string
	exportSigningKey string
	exportTokenTTL   time.Duration
}

// Config wires a Handler.
type Config struct {
	Auth       *auth.Service
	Courses    *course.Service
	Students   *student.Service
	Attendance *attendance.Service
	Media      *media.Store

	ExportDir        string
	ExportSigningKey string
	ExportTokenTTL   time.Duration
}

// New creates a handler.
func New(cfg Config) *Handler {
	return &Handler{
		auth:             cfg.Auth,
		courses:          cfg.Courses,
		students:         cfg.Students,
		attendance:       cfg.Attendance,
		media:            cfg.Media,
		exportDir:        cfg.ExportDir,
		exportSigningKey: cfg.ExportSigningKey,
		exportTokenTTL:   cfg.ExportTokenTTL,
	}
}

// Register mounts all routes under /api.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api")

	// Public surface: credentials in, or student-facing code-gated flows.
	api.POST("/login", h.login)
	api.POST("/lecturers/signup", h.lecturerSignup)
	api.POST("/attendance/validate", h.validate)
	api.POST("/attendance/attend", h.attend)
	api.POST("/students", h.enroll)
	api.GET("/students/check", h.checkStudent)
	// Downloads authenticate through their signed token.
	api.GET("/exports/:token", h.downloadExport)

	authed := api.Group("", auth.Authenticate(h.auth))
	authed.GET("/user", h.currentUser)
	authed.GET("/courses", h.listCourses)
	authed.POST("/courses", h.createCourse)
	authed.GET("/courses/:id/export", h.exportReport)
	authed.GET("/courses/:id/export.xlsx", h.exportWorkbook)
	authed.GET("/attendance", h.listSessions)
	authed.POST("/attendance", h.createSession)
	authed.GET("/attendance/:id", h.sessionDetail)
	authed.POST("/attendance/:id/open", h.openSession)
	authed.POST("/attendance/:id/close", h.closeSession)
	authed.POST("/attendance/:id/commit", h.commitSession)
	authed.DELETE("/attendance/:id", h.deleteSession)
}

func identity(c *gin.Context) auth.Identity {
	id, _ := auth.IdentityFrom(c)
	return id
}

// --- auth ---

func (h *Handler) login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation("", "please provide both email and password"))
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": token})
}

func (h *Handler) lecturerSignup(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation("", "please provide both email and password"))
		return
	}
	token, err := h.auth.RegisterLecturer(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": token})
}

func (h *Handler) currentUser(c *gin.Context) {
	id := identity(c)
	c.JSON(http.StatusOK, gin.H{"type": id.Role, "email": id.Email})
}

// --- courses ---

func (h *Handler) listCourses(c *gin.Context) {
	courses, err := h.courses.List(c.Request.Context(), identity(c))
	if err != nil {
		fail(c, err)
		return
	}
	if courses == nil {
		courses = []course.Course{}
	}
	c.JSON(http.StatusOK, courses)
}

func (h *Handler) createCourse(c *gin.Context) {
	var req struct {
		Title string `json:"title" binding:"required"`
		Code  string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation("", "please provide both title and code"))
		return
	}
	crs, err := h.courses.Create(c.Request.Context(), identity(c), req.Title, req.Code)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, crs)
}

// --- attendance sessions ---

func (h *Handler) listSessions(c *gin.Context) {
	sessions, err := h.attendance.ListSessions(c.Request.Context(), identity(c), c.Query("course"))
	if err != nil {
		fail(c, err)
		return
	}
	if sessions == nil {
		sessions = []attendance.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (h *Handler) createSession(c *gin.Context) {
	var req struct {
		CourseID string `json:"course_id" binding:"required"`
		Lat      string `json:"lat"`
		Lng      string `json:"long"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation("course_id", "missing course parameter"))
		return
	}
	sess, err := h.attendance.CreateSession(c.Request.Context(), identity(c), req.CourseID, req.Lat, req.Lng)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

func (h *Handler) sessionDetail(c *gin.Context) {
	checkins, err := h.attendance.SessionDetail(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	if checkins == nil {
		checkins = []attendance.CheckIn{}
	}
	c.JSON(http.StatusOK, checkins)
}

func (h *Handler) openSession(c *gin.Context)   { h.transition(c, h.attendance.Open) }
func (h *Handler) closeSession(c *gin.Context)  { h.transition(c, h.attendance.Close) }
func (h *Handler) commitSession(c *gin.Context) { h.transition(c, h.attendance.Commit) }
func (h *Handler) deleteSession(c *gin.Context) { h.transition(c, h.attendance.DeleteSession) }

func (h *Handler) transition(c *gin.Context, op func(ctx context.Context, id auth.Identity, sessionID string) (attendance.Session, error)) {
	sess, err := op(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// --- check-in ---

func (h *Handler) validate(c *gin.Context) {
	var req struct {
		AttendanceCode string `json:"attendance_code" binding:"required"`
		MatricNumber   string `json:"matric_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, apperr.Validation("", "please provide both attendance code and matric number"))
		return
	}
	res, err := h.attendance.Validate(c.Request.Context(), req.AttendanceCode, req.MatricNumber)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) attend(c *gin.Context) {
	req := attendance.AttendRequest{
		Code:         c.PostForm("attendance_code"),
		MatricNumber: c.PostForm("matric_number"),
		Lat:          c.PostForm("lat"),
		Lng:          c.PostForm("long"),
		Distance:     c.PostForm("distance"),
	}

	if file, err := c.FormFile("image"); err == nil {
		ref, err := h.saveUpload(file)
		if err != nil {
			fail(c, err)
			return
		}
		req.SelfieRef = ref
	}

	res, err := h.attendance.Attend(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- students ---

func (h *Handler) enroll(c *gin.Context) {
	matric := c.PostForm("matric_number")

	var photoRef string
	if file, err := c.FormFile("image"); err == nil {
		ref, err := h.saveUpload(file)
		if err != nil {
			fail(c, err)
			return
		}
		photoRef = ref
	}

	res, err := h.students.Enroll(c.Request.Context(), matric, photoRef)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) checkStudent(c *gin.Context) {
	st, err := h.students.Check(c.Request.Context(), c.Query("matric_number"))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"matric_number": ""})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matric_number": st.MatricNumber})
}

// --- export ---

func (h *Handler) exportReport(c *gin.Context) {
	report, err := h.attendance.ExportReport(c.Request.Context(), identity(c), c.Param("id"), markScale(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *Handler) exportWorkbook(c *gin.Context) {
	courseID := c.Param("id")
	report, err := h.attendance.ExportReport(c.Request.Context(), identity(c), courseID, markScale(c))
	if err != nil {
		fail(c, err)
		return
	}

	filename := fmt.Sprintf("attendance-%s-%d.xlsx", courseID, time.Now().Unix())
	if err := attendance.WriteWorkbook(report, filepath.Join(h.exportDir, filename)); err != nil {
		fail(c, err)
		return
	}

	token, err := auth.IssueExportToken(filename, h.exportSigningKey, h.exportTokenTTL)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": "/api/exports/" + token})
}

func (h *Handler) downloadExport(c *gin.Context) {
	filename, err := auth.ParseExportToken(c.Param("token"), h.exportSigningKey)
	if err != nil {
		fail(c, err)
		return
	}
	// Tokens are signed by us, but never trust a path from the wire.
	if filepath.Base(filename) != filename {
		fail(c, apperr.Authentication("invalid or expired download token"))
		return
	}
	c.FileAttachment(filepath.Join(h.exportDir, filename), filename)
}

func (h *Handler) saveUpload(file *multipart.FileHeader) (string, error) {
	f, err := file.Open()
	if err != nil {
		return "", apperr.Validation("image", "could not read the uploaded image")
	}
	defer f.Close()
	ref, err := h.media.Save(f, file.Filename)
	if err != nil {
		return "", apperr.Unexpected(err)
	}
	return ref, nil
}

func markScale(c *gin.Context) float64 {
	if v := c.Query("mark"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return 1
}
