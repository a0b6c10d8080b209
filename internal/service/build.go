package service

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/config"
	"github.com/a3tai/mcp-grant-filler/internal/drafts"
	"github.com/a3tai/mcp-grant-filler/internal/llm"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/extraction"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/formfill"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/security"
	"github.com/a3tai/mcp-grant-filler/internal/questions"
	"github.com/a3tai/mcp-grant-filler/internal/source"
	"github.com/a3tai/mcp-grant-filler/internal/storage"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/browser"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/dom"
)

// Build assembles a service from configuration. The returned service owns
// the stores, the model client and the browser; Close releases them.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	grants, err := openGrantStore(cfg)
	if err != nil {
		return nil, err
	}
	objects, err := openObjectStore(cfg)
	if err != nil {
		_ = grants.Close()
		return nil, err
	}

	var client llm.Client
	if cfg.HasModel() {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, logger)
		if err != nil {
			_ = grants.Close()
			return nil, err
		}
		client = gemini
	} else {
		logger.Warn("no Gemini API key configured; question extraction falls back and drafting is disabled")
	}

	extractor, err := questions.NewExtractor(client, questions.Config{
		BatchSize:   cfg.BatchSize,
		BatchDelay:  cfg.BatchDelay,
		MaxPages:    cfg.MaxPages,
		SettleDelay: cfg.SettleDelay,
	}, logger)
	if err != nil {
		_ = grants.Close()
		return nil, err
	}

	paths, err := security.NewPathValidator(cfg.DataDir)
	if err != nil {
		_ = grants.Close()
		return nil, err
	}

	fetch := dom.NewHTTPLoader(cfg.PageLoadTimeout)
	var surfaces Surfaces
	var launcher *browser.Launcher
	if cfg.Surface == config.SurfaceStatic {
		surfaces = StaticSurfaces{Loader: fetch, Logger: logger}
	} else {
		launcher = browser.NewLauncher(browser.Options{
			Headless:          cfg.Headless,
			InstallDriver:     true,
			NavigationTimeout: cfg.PageLoadTimeout,
			RenderWait:        cfg.LoadWait,
			ActionTimeout:     cfg.FieldTimeout,
			Highlight:         cfg.Highlight,
		}, logger)
		surfaces = BrowserSurfaces{Launcher: launcher, KeepOpen: cfg.KeepBrowserOpen}
	}

	svc, err := New(Deps{
		Grants:    grants,
		Objects:   objects,
		Engine:    webfill.NewEngine(cfg.Engine(), logger),
		PDF:       formfill.New(cfg.Thresholds(), logger),
		Fields:    extraction.NewExtractor(logger),
		Sources:   source.NewReader(cfg.MaxFileSize, logger),
		Questions: extractor,
		Drafts:    drafts.NewGenerator(client, cfg.BatchSize, cfg.BatchDelay, logger),
		Surfaces:  surfaces,
		Fetch:     fetch,
		Paths:     paths,
		Info: Info{
			ServerName:      cfg.ServerName,
			Version:         cfg.Version,
			GrantStore:      cfg.GrantStore,
			ObjectStore:     cfg.ObjectStore,
			ModelConfigured: client != nil,
			MaxFileSize:     cfg.MaxFileSize,
		},
	}, logger)
	if err != nil {
		_ = grants.Close()
		return nil, err
	}
	if client != nil {
		svc.OnClose(client.Close)
	}
	if launcher != nil {
		svc.OnClose(launcher.Close)
	}
	return svc, nil
}

func openGrantStore(cfg *config.Config) (storage.GrantStore, error) {
	var (
		store storage.GrantStore
		err   error
	)
	switch cfg.GrantStore {
	case config.StorePostgres:
		store, err = storage.OpenPostgres(cfg.DatabaseURL)
	default:
		store, err = storage.NewFileStore(filepath.Join(cfg.DataDir, "records"))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open grant store: %w", err)
	}

	cached, err := storage.NewCachedStore(store, cfg.CacheSize)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return cached, nil
}

func openObjectStore(cfg *config.Config) (storage.ObjectStore, error) {
	if cfg.ObjectStore == config.ObjectsS3 {
		return storage.NewS3ObjectStore(storage.S3Config{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Bucket:    cfg.S3Bucket,
			UseSSL:    cfg.S3UseSSL,
		})
	}
	return storage.NewLocalObjectStore(filepath.Join(cfg.DataDir, "objects"))
}
