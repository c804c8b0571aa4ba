package dashboard

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"modscout/config"
	"modscout/internal/metrics"
	"modscout/internal/pipeline"
	"modscout/logger"
	"modscout/models"
	"modscout/processor"
	"modscout/reader"
	"modscout/writer"
)

//go:embed templates/*.tmpl
var embeddedFS embed.FS

const historySize = 200

// Searcher is the slice of the pipeline the web front end drives.
type Searcher interface {
	SearchQueryWithProgress(ctx context.Context, raw string, progress func(pipeline.ProgressEvent)) (*models.SearchResult, error)
	Aliases() map[string]string
}

// Server hosts the location search form, the JSON API and the live search socket.
type Server struct {
	cfg        config.WebConfig
	market     config.MarketSourceConfig
	prometheus bool
	appName    string
	searcher   Searcher
	log        *logger.Log
	logStore   *logStore
	searches   *ring[searchRecord]
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer returns nil when the web front end is disabled.
func NewServer(cfg *config.Config, searcher Searcher, log *logger.Log) (*Server, error) {
	if !cfg.Web.Enabled {
		return nil, nil
	}
	if searcher == nil {
		return nil, errors.New("web front end needs a searcher")
	}

	web := cfg.Web
	web.Address = normalizeAddress(web.Address)
	if web.MaxQueryLength <= 0 {
		web.MaxQueryLength = 512
	}

	logStore := newLogStore(historySize)
	log.AddHook(logStore)

	s := &Server{
		cfg:        web,
		market:     cfg.Source.Market,
		prometheus: cfg.Metrics.Prometheus,
		appName:    cfg.ModScout.Name,
		searcher:   searcher,
		log:        log,
		logStore:   logStore,
		searches:   newRing[searchRecord](historySize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
	}

	log.WithComponent("web").WithFields(logger.Fields{
		"address":    web.Address,
		"prometheus": s.prometheus,
	}).Info("web front end initialized")

	return s, nil
}

// close stops collecting log records and detaches the hook from the logger.
func (s *Server) close() {
	s.logStore.close()
	s.log.RemoveHook(s.logStore)
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if s == nil {
		return nil
	}
	defer s.close()

	router, err := s.buildRouter()
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.log.WithComponent("web").WithFields(logger.Fields{"address": s.cfg.Address}).Info("web front end listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) buildRouter() (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	tmpl, err := template.New("web").Funcs(template.FuncMap{
		"rank":      writer.RankLabel,
		"locations": writer.LocationsLabel,
		"seller":    writer.SellerName,
		"itemPage":  s.market.ItemPage,
		"join":      strings.Join,
	}).ParseFS(embeddedFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	router.GET("/", s.handleIndex)
	router.POST("/search", s.handleSearchForm)
	router.GET("/api/search", s.handleSearchAPI)
	router.GET("/api/searches", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"searches": s.searches.snapshot()})
	})
	router.GET("/api/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logStore.snapshot()})
	})
	router.GET("/ws/search", s.handleSearchSocket)
	router.GET("/healthz", s.handleHealth)
	if s.prometheus {
		router.GET("/metrics", gin.WrapH(metrics.Handler()))
	}

	return router, nil
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"AppName": s.appName,
		"Aliases": s.aliasList(),
		"Query":   "",
		"Error":   "",
	})
}

func (s *Server) handleSearchForm(c *gin.Context) {
	query := c.PostForm("locations")
	result, status, err := s.search(c.Request.Context(), query, nil)
	if err != nil {
		c.HTML(status, "index.tmpl", gin.H{
			"AppName": s.appName,
			"Aliases": s.aliasList(),
			"Query":   query,
			"Error":   userMessage(err),
		})
		return
	}

	c.HTML(http.StatusOK, "results.tmpl", gin.H{
		"AppName":   s.appName,
		"Result":    result,
		"ModsFound": result.ModsFound(),
	})
}

func (s *Server) handleSearchAPI(c *gin.Context) {
	query := c.Query("locations")
	result, status, err := s.search(c.Request.Context(), query, nil)
	if err != nil {
		c.JSON(status, gin.H{"error": userMessage(err)})
		return
	}
	c.JSON(http.StatusOK, searchPayload(result))
}

func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	host, errs := sampleHost(ctx, "/")
	for _, err := range errs {
		s.log.WithComponent("web").WithError(err).Debug("host sample failed")
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "host": host})
}

// search validates the query, runs it and records it in the history. The
// returned status is meant for the HTTP response when err is not nil.
func (s *Server) search(ctx context.Context, query string, progress func(pipeline.ProgressEvent)) (*models.SearchResult, int, error) {
	if len(query) > s.cfg.MaxQueryLength {
		err := errTooLong
		s.searches.push(newSearchRecord(query, nil, err, 0))
		return nil, http.StatusRequestEntityTooLarge, err
	}

	start := time.Now()
	result, err := s.searcher.SearchQueryWithProgress(ctx, query, progress)
	s.searches.push(newSearchRecord(query, result, err, time.Since(start)))
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.WithComponent("web").WithFields(logger.Fields{"query": query}).WithError(err).Error("search failed")
		}
		return nil, status, err
	}
	return result, http.StatusOK, nil
}

var errTooLong = errors.New("location query is too long")

func statusFor(err error) int {
	switch {
	case errors.Is(err, processor.ErrNoInputLocations), errors.Is(err, errTooLong):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrNoMatchingMods):
		return http.StatusNotFound
	case errors.Is(err, reader.ErrProviderUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, processor.ErrNoInputLocations):
		return processor.ErrNoInputLocations.Error()
	case errors.Is(err, pipeline.ErrNoMatchingMods):
		return pipeline.ErrNoMatchingMods.Error()
	case errors.Is(err, errTooLong):
		return errTooLong.Error()
	case errors.Is(err, reader.ErrProviderUnavailable):
		return "market data is unavailable right now, try again later"
	default:
		return "search failed"
	}
}

func searchPayload(result *models.SearchResult) gin.H {
	return gin.H{
		"run_id":       result.RunID,
		"search_query": result.Query,
		"tokens":       result.Tokens,
		"mods":         result.ModsFound(),
		"orders":       result.Orders,
		"unresolved":   result.Unresolved,
		"ambiguous":    result.Ambiguous,
		"failed":       result.Failed,
		"no_sellers":   result.NoSellers(),
		"duration_ms":  result.Duration.Milliseconds(),
	}
}

type aliasEntry struct {
	Code string
	Name string
}

func (s *Server) aliasList() []aliasEntry {
	aliases := config.AliasConfig{Locations: s.searcher.Aliases()}
	out := make([]aliasEntry, 0, len(aliases.Locations))
	for _, code := range aliases.Keys() {
		out = append(out, aliasEntry{Code: code, Name: aliases.Locations[code]})
	}
	return out
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:5000"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "5000"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "5000")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "5000")
	}

	return addr
}
