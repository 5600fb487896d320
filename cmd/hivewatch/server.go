package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hivewatch/hivewatch/automod"
	"github.com/hivewatch/hivewatch/automod/scheduler"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

type Server struct {
	echo   *echo.Echo
	httpd  *http.Server
	svc    *automod.Service
	sched  *scheduler.CronScheduler
	logger *slog.Logger
}

type Config struct {
	Bind       string
	AdminToken string
	Logger     *slog.Logger
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

type contentEvent struct {
	ItemID string `json:"itemId"`
	Author string `json:"author"`
}

type exemptResponse struct {
	User   string `json:"user"`
	Exempt bool   `json:"exempt"`
}

func NewServer(svc *automod.Service, sched *scheduler.CronScheduler, config Config) *Server {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	srv := &Server{
		echo:   e,
		svc:    svc,
		sched:  sched,
		logger: logger,
	}
	srv.httpd = &http.Server{
		Handler:        e,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1024 * 1024,
	}

	e.HideBanner = true
	e.Use(slogecho.New(logger))
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("hivewatch"))
	e.Use(middleware.BodyLimit("1M"))

	e.GET("/_health", srv.HandleHealthCheck)

	api := e.Group("")
	if config.AdminToken != "" {
		api.Use(middleware.KeyAuth(func(key string, c echo.Context) (bool, error) {
			return key == config.AdminToken, nil
		}))
	}
	api.POST("/events/content", srv.HandleContentEvent)
	api.POST("/events/modaction", srv.HandleModActionEvent)
	api.POST("/users/:name/exempt", srv.HandleToggleExempt)
	api.GET("/users/:name/verdict", srv.HandleVerdict)
	return srv
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Serves HTTP and runs the scheduler until SIGINT or SIGTERM.
func (srv *Server) Run(ctx context.Context) error {
	if srv.sched != nil {
		srv.sched.Start()
	}

	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-exitSignals:
		srv.logger.Info("received OS exit signal", "signal", sig)
	case <-ctx.Done():
	}
	return srv.Shutdown()
}

func (srv *Server) Shutdown() error {
	srv.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if err := srv.httpd.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if srv.sched != nil {
		if err := srv.sched.Stop(10 * time.Second); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	if _, err := srv.svc.Client.AppAccount(c.Request().Context()); err != nil {
		srv.logger.Error("healthcheck can't reach platform", "err", err)
		return c.JSON(http.StatusServiceUnavailable, GenericStatus{Status: "error", Daemon: "hivewatch", Message: "can't reach platform"})
	}
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "hivewatch"})
}

func (srv *Server) HandleContentEvent(c echo.Context) error {
	var ev contentEvent
	if err := c.Bind(&ev); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if ev.ItemID == "" || ev.Author == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "itemId and author are required")
	}
	if err := srv.svc.OnContentCreated(c.Request().Context(), ev.ItemID, ev.Author); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (srv *Server) HandleModActionEvent(c echo.Context) error {
	var action automod.ModAction
	if err := c.Bind(&action); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if action.Type == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "type is required")
	}
	if err := srv.svc.OnModerationAction(c.Request().Context(), action); err != nil {
		return err
	}
	return c.NoContent(http.StatusAccepted)
}

func (srv *Server) HandleToggleExempt(c echo.Context) error {
	user := c.Param("name")
	exempt, err := srv.svc.OnManualExemptionToggle(c.Request().Context(), user)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, exemptResponse{User: user, Exempt: exempt})
}

func (srv *Server) HandleVerdict(c echo.Context) error {
	opts := automod.EvalOptions{BypassCache: c.QueryParam("fresh") == "true", ReadOnly: true}
	v, err := srv.svc.Evaluate(c.Request().Context(), c.Param("name"), opts)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}
