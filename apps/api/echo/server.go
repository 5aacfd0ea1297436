// Package echoapi exposes the campus services over HTTP with echo.
package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/academic"
	"github.com/trezcool/campus/core/announcement"
	"github.com/trezcool/campus/core/attendance"
	"github.com/trezcool/campus/core/dashboard"
	"github.com/trezcool/campus/core/exam"
	"github.com/trezcool/campus/core/fee"
	"github.com/trezcool/campus/core/homework"
	"github.com/trezcool/campus/core/notification"
	"github.com/trezcool/campus/core/policy"
	"github.com/trezcool/campus/core/roster"
	"github.com/trezcool/campus/core/user"
	"github.com/trezcool/campus/services/realtime"
)

type ServerDeps struct {
	Conf       *core.Config
	Logger     core.Logger
	Validate   *validator.Validate
	Translator ut.Translator
	Policy     *policy.Policy
	Blobs      core.BlobStore
	Hub        *realtime.Hub

	UserSvc         *user.Service
	AcademicSvc     *academic.Service
	RosterSvc       *roster.Service
	AttendanceSvc   *attendance.Service
	HomeworkSvc     *homework.Service
	ExamSvc         *exam.Service
	FeeSvc          *fee.Service
	AnnouncementSvc *announcement.Service
	NotificationSvc *notification.Service
	DashboardSvc    *dashboard.Service
}

type Server struct {
	deps     ServerDeps
	app      *echo.Echo
	auth     *Auth
	errors   chan error
	shutdown chan os.Signal
}

var _ http.Handler = (*Server)(nil) // interface compliance check

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		auth:     NewAuth(deps.Conf),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.TestMode {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	if len(conf.Server.AllowedOrigins) > 0 {
		s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.AllowedOrigins}))
	}

	s.app.GET("/", home)
	if prefix := strings.TrimSuffix(conf.Uploads.BaseURL, "/"); strings.HasPrefix(prefix, "/") && conf.Uploads.Dir != "" {
		s.app.Static(prefix, conf.Uploads.Dir)
	}

	v1 := s.app.Group("/v1")
	authed := v1.Group("", s.auth.Middleware(), userMiddleware(s.deps.UserSvc))

	registerAuthAPI(v1, authed, s.auth, s.deps)
	registerUserAPI(authed, s.deps)
	registerAcademicAPI(authed, s.deps)
	registerRosterAPI(authed, s.deps)
	registerAttendanceAPI(authed, s.deps)
	registerHomeworkAPI(authed, s.deps)
	registerExamAPI(authed, s.deps)
	registerFeeAPI(authed, s.deps)
	registerAnnouncementAPI(authed, s.deps)
	registerNotificationAPI(authed, s.deps)
	registerLiveAPI(v1, s.auth, s.deps)
}

// Start listens on the configured host. Startup and listener errors are sent to Errors.
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

// ShutdownSignal receives SIGINT, SIGTERM and the shutdown requested by a handler.
func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

// Shutdown stops accepting requests and waits for the outstanding ones until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Campus API!")
}
