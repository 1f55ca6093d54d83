package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vsporte/fhm-matches/internal/cache"
	"github.com/vsporte/fhm-matches/internal/calendar"
	"github.com/vsporte/fhm-matches/internal/filter"
	"github.com/vsporte/fhm-matches/internal/logger"
	"github.com/vsporte/fhm-matches/internal/match"
)

const (
	Name    = "FHM VSporte Matches API"
	Version = "1.0.0"
)

// Accessor is the cache the server reads from
type Accessor interface {
	Get(ctx context.Context) (*cache.Result, error)
	Refresh(ctx context.Context) (*cache.Result, error)
}

// Options configure a Server
type Options struct {
	// TrustedProxies are passed to gin; nil trusts only loopback.
	TrustedProxies []string
	// Location decides "today" for month names in filters and times in the feed.
	Location *time.Location
	Logger   *logger.Logger
	Metrics  *logger.Metrics
	Now      func() time.Time
}

type Server struct {
	acc  Accessor
	opts Options
}

func New(acc Accessor, opts Options) *Server {
	if opts.TrustedProxies == nil {
		opts.TrustedProxies = []string{"127.0.0.1", "::1"}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}
	if opts.Metrics == nil {
		opts.Metrics = logger.DefaultMetrics()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{acc: acc, opts: opts}
}

// Router builds the gin engine with logging, recovery and CORS middleware.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(s.opts.TrustedProxies); err != nil {
		return nil, err
	}
	r.Use(requestLogger(s.opts.Logger), recovery(s.opts.Logger), cors())

	r.GET("/", s.index)
	r.GET("/health", s.health)

	api := r.Group("/api")
	api.GET("/matches", s.listMatches)
	api.GET("/matches.ics", s.matchesICS)
	api.GET("/arenas", s.listArenas)
	api.POST("/refresh", s.refresh)
	api.GET("/metrics", s.metrics)

	return r, nil
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    Name,
		"version": Version,
		"endpoints": gin.H{
			"/api/matches":     "Получить все матчи",
			"/api/matches.ics": "Матчи в формате iCalendar",
			"/api/arenas":      "Список арен",
			"/api/refresh":     "Принудительно обновить данные",
			"/api/metrics":     "Метрики сервиса",
			"/health":          "Проверка работоспособности",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": s.opts.Now().Format(time.RFC3339),
	})
}

func (s *Server) listMatches(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	res, ok := s.get(c)
	if !ok {
		return
	}

	data := f.Apply(res.Snapshot.Matches)
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      len(data),
		"data":       data,
		"updated_at": res.Snapshot.LastUpdate,
		"cached":     res.Cached,
	})
}

func (s *Server) matchesICS(c *gin.Context) {
	f, ok := s.filter(c)
	if !ok {
		return
	}
	res, ok := s.get(c)
	if !ok {
		return
	}

	feed := calendar.GenerateICS(f.Apply(res.Snapshot.Matches), calendar.Options{
		Location: s.opts.Location,
		Stamp:    res.Snapshot.LastUpdate,
	})
	c.Header("Content-Disposition", `inline; filename="matches.ics"`)
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", []byte(feed))
}

func (s *Server) listArenas(c *gin.Context) {
	res, ok := s.get(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(res.Snapshot.Arenas),
		"data":    res.Snapshot.Arenas,
	})
}

func (s *Server) refresh(c *gin.Context) {
	res, err := s.acc.Refresh(c.Request.Context())
	if !s.ok(c, res, err) {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "Данные успешно обновлены",
		"count":      res.Snapshot.TotalMatches,
		"updated_at": res.Snapshot.LastUpdate,
	})
}

func (s *Server) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.opts.Metrics.GetSnapshot())
}

// get fetches the snapshot and writes the error response itself when there is none to serve.
func (s *Server) get(c *gin.Context) (*cache.Result, bool) {
	res, err := s.acc.Get(c.Request.Context())
	if !s.ok(c, res, err) {
		return nil, false
	}
	return res, true
}

func (s *Server) ok(c *gin.Context, res *cache.Result, err error) bool {
	switch {
	case err != nil:
		s.opts.Logger.Error("serving snapshot failed", logger.Fields{"path": c.FullPath()}, err)
		fail(c, http.StatusInternalServerError, err.Error())
		return false
	case res.Snapshot.Failed():
		fail(c, http.StatusInternalServerError, res.Snapshot.Error)
		return false
	}
	return true
}

func (s *Server) filter(c *gin.Context) (*filter.Filter, bool) {
	var weekends bool
	if v, ok := c.GetQuery("weekends"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			fail(c, http.StatusBadRequest, fmt.Sprintf("invalid weekends value %q", v))
			return nil, false
		}
		weekends = b
	}
	p := filter.Params{
		Arena:    c.Query("arena"),
		Team:     c.Query("team"),
		From:     c.Query("from"),
		To:       c.Query("to"),
		Range:    c.Query("range"),
		Weekends: weekends,
	}

	f, err := p.Filter(match.DateOf(s.opts.Now().In(s.opts.Location)))
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return nil, false
	}
	return f, true
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": msg})
}
