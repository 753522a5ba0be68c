package server

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/jacksonlee411/navtree/internal/config"
	"github.com/jacksonlee411/navtree/internal/logging"
	"github.com/jacksonlee411/navtree/internal/metrics"
	"github.com/jacksonlee411/navtree/internal/routing"
	"github.com/jacksonlee411/navtree/modules/navigation/domain/ports"
	"github.com/jacksonlee411/navtree/modules/navigation/services"
	"github.com/jacksonlee411/navtree/pkg/authz"
	"go.uber.org/zap"
)

type HandlerOptions struct {
	Config          config.Config
	Logger          *zap.Logger
	Metrics         *metrics.Metrics
	TenancyResolver TenancyResolver
	MenuStore       ports.MenuStore
	UIState         UIStateStorageFactory
	Authorizer      authorizer
}

func NewHandlerWithOptions(opts HandlerOptions) (http.Handler, error) {
	cfg := opts.Config
	if opts.MenuStore == nil {
		return nil, errors.New("server: missing menu store")
	}
	if opts.TenancyResolver == nil {
		return nil, errors.New("server: missing tenancy resolver")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New(cfg.MetricsNamespace)
	}

	allowlistPath := cfg.AllowlistPath
	if allowlistPath == "" {
		p, err := defaultConfigPath("config/routing/allowlist.yaml")
		if err != nil {
			return nil, err
		}
		allowlistPath = p
	}
	a, err := routing.LoadAllowlist(allowlistPath)
	if err != nil {
		return nil, err
	}
	classifier, err := routing.NewClassifier(a, "server")
	if err != nil {
		return nil, err
	}

	az := opts.Authorizer
	if az == nil {
		loaded, err := loadAuthorizer(cfg)
		if err != nil {
			return nil, err
		}
		az = loaded
	}

	pageLimit, maxPages := cfg.MenuPageLimit, cfg.MenuMaxPages
	records := services.NewMenuRecordStore(opts.MenuStore,
		services.WithPageLimit(pageLimit),
		services.WithMaxPages(maxPages),
		services.WithRecordStoreLogger(logger.Named("records")),
		services.WithRecordStoreObserver(m),
	)
	api := &navigationAPI{
		store:   opts.MenuStore,
		records: records,
		order:   services.NewMenuOrderService(opts.MenuStore, records, logger.Named("order"), m),
		status:  services.NewMenuStatusService(opts.MenuStore, records, logger.Named("status"), m),
		writes:  services.NewMenuWriteService(opts.MenuStore, records, logger.Named("writes"), m),
		uiState: opts.UIState,
	}

	router := routing.NewRouter(classifier)
	router.Handle(routing.RouteClassOps, http.MethodGet, "/health", http.HandlerFunc(api.handleHealth))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/healthz", http.HandlerFunc(api.handleHealth))
	router.Handle(routing.RouteClassOps, http.MethodGet, "/metrics", m.Handler())

	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/menus", http.HandlerFunc(api.handleList))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/nav/api/menus", http.HandlerFunc(api.handleCreate))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/menus/tree", http.HandlerFunc(api.handleTree))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/nav/api/menus/reorder", http.HandlerFunc(api.handleReorder))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/menus/by-slug/{slug}", http.HandlerFunc(api.handleBySlug))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/menus/for-user/{user_id}", http.HandlerFunc(api.handleForUser))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPut, "/nav/api/menus/{id}", http.HandlerFunc(api.handleUpdate))
	router.Handle(routing.RouteClassInternalAPI, http.MethodDelete, "/nav/api/menus/{id}", http.HandlerFunc(api.handleDelete))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/menus/{id}/children", http.HandlerFunc(api.handleChildren))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/nav/api/menus/{id}/move", http.HandlerFunc(api.handleMove))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/nav/api/menus/{id}/status/{action}", http.HandlerFunc(api.handleStatus))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/navigation", http.HandlerFunc(api.handleNavigation))
	router.Handle(routing.RouteClassInternalAPI, http.MethodGet, "/nav/api/ui-state", http.HandlerFunc(api.handleGetUIState))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPut, "/nav/api/ui-state", http.HandlerFunc(api.handlePutUIState))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/nav/api/ui-state/accordion/{id}/toggle", http.HandlerFunc(api.handleToggleAccordion))
	router.Handle(routing.RouteClassInternalAPI, http.MethodPost, "/nav/api/ui-state/collapse-all", http.HandlerFunc(api.handleCollapseAll))

	if err := router.Verify(); err != nil {
		return nil, err
	}

	var h http.Handler = router
	h = withAuthz(classifier, az, h)
	h = withTenantAndPrincipal(classifier, opts.TenancyResolver, cfg.TrustProxy, h)
	h = m.Middleware(router.Template, h)
	h = logging.Middleware(logger, h)
	return h, nil
}

func loadAuthorizer(cfg config.Config) (*authz.Authorizer, error) {
	modelPath := cfg.AuthzModelPath
	if modelPath == "" {
		p, err := defaultConfigPath("config/access/model.conf")
		if err != nil {
			return nil, err
		}
		modelPath = p
	}
	policyPath := cfg.AuthzPolicyPath
	if policyPath == "" {
		p, err := defaultConfigPath("config/access/policy.csv")
		if err != nil {
			return nil, err
		}
		policyPath = p
	}
	mode, err := authz.ParseMode(cfg.AuthzMode, cfg.AuthzUnsafe)
	if err != nil {
		return nil, err
	}
	return authz.NewAuthorizer(modelPath, policyPath, mode)
}

// defaultConfigPath looks for rel in the working directory and up to seven
// parents, so tests running inside a package directory find the repo config.
func defaultConfigPath(rel string) (string, error) {
	path := rel
	for range 8 {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		path = filepath.Join("..", path)
	}
	return "", errors.New("server: " + rel + " not found")
}
