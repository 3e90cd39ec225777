package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"semsearch/internal/app"
	"semsearch/internal/config"
	"semsearch/internal/corpus"
	"semsearch/internal/diagnostic"
	"semsearch/internal/domain"
	"semsearch/internal/logger"
	"semsearch/internal/presenter"
	"semsearch/internal/server"
	"semsearch/internal/service"
	"semsearch/internal/tui"
)

// setup loads the configuration, applies flag overrides and builds the logger.
// When toFile is set and no log file is configured, logs go to the data dir.
func setup(c *cli.Context, toFile bool) (*app.Resources, *zap.Logger, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Logging.Level = strings.ToLower(lvl)
	}
	if c.Bool("debug") {
		cfg.Logging.Debug = true
	}
	if toFile && cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(config.DataDir(), "semsearch.log")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return app.NewResources(cfg, log), log, nil
}

func tuiCommand(c *cli.Context) error {
	res, log, err := setup(c, true)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	ctx := logger.ContextWithLogger(c.Context, log)
	svc, readiness, err := res.Services(ctx)
	if err != nil {
		return err
	}
	status := fmt.Sprintf("Collection %q %s. Type to search.", res.Collection(), readinessText(readiness))

	m := tui.New(ctx, res.NewSession(svc), corpus.Presets, res.Corpus(), status)
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func searchCommand(c *cli.Context) error {
	res, log, err := setup(c, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	ctx := logger.ContextWithLogger(c.Context, log)
	out := presenter.NewText(os.Stdout)
	asJSON := c.Bool("json")
	if !asJSON {
		out.Banner("Semantic Text Search Demo")
	}

	svc, readiness, err := res.Services(ctx)
	if err != nil {
		return err
	}
	if !asJSON {
		fmt.Printf("\nCollection %q %s.\n", res.Collection(), readinessText(readiness))
	}

	topK := c.Int("top-k")
	if topK == 0 {
		topK = res.Config().Search.DefaultTopK
	}
	topK = domain.ClampTopK(topK, min(res.Config().Search.MaxTopK, len(res.Corpus())))

	queries := []string{strings.TrimSpace(strings.Join(c.Args().Slice(), " "))}
	if queries[0] == "" {
		queries = queries[:0]
		for _, p := range corpus.Presets {
			queries = append(queries, p.Query)
		}
		if !asJSON {
			fmt.Println()
			out.Banner("Example Searches")
		}
	}

	for _, q := range queries {
		r, err := svc.Search(ctx, q, topK)
		if err != nil {
			return err
		}
		if asJSON {
			if err := presenter.JSON(os.Stdout, r); err != nil {
				return err
			}
			continue
		}
		out.Result(r)
	}
	return nil
}

func serveCommand(c *cli.Context) error {
	res, log, err := setup(c, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, readiness, err := res.Services(ctx)
	if err != nil {
		return err
	}
	log.Info("collection ready", zap.String("collection", res.Collection()), zap.Stringer("readiness", readiness))

	cfg := res.Config().Server
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	srv := server.NewServer(server.Deps{
		Searcher:    svc,
		NewSession:  func() *service.Session { return res.NewSession(svc) },
		Collection:  res.Collection(),
		Documents:   res.Corpus(),
		Presets:     corpus.Presets,
		DefaultTopK: res.Config().Search.DefaultTopK,
		MaxTopK:     res.Config().Search.MaxTopK,
	}, &cfg, log.Named("server"))

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	}
}

func checkCommand(c *cli.Context) error {
	res, log, err := setup(c, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	ctx := logger.ContextWithLogger(c.Context, log)
	if err := diagnostic.NewChecker(os.Stdout).Run(ctx, res.Index); err != nil {
		return cli.Exit("", 1)
	}
	return nil
}

func dropCommand(c *cli.Context) error {
	res, log, err := setup(c, false)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer res.Close()

	name := c.String("collection")
	if name == "" {
		name = res.Collection()
	}
	idx, err := res.Index(c.Context)
	if err != nil {
		return err
	}
	if err := idx.DropCollection(c.Context, name); err != nil {
		if errors.Is(err, domain.ErrCollectionAbsent) {
			fmt.Printf("Collection %q does not exist.\n", name)
			return nil
		}
		return err
	}
	log.Info("collection dropped", zap.String("collection", name))
	fmt.Printf("Dropped collection %q.\n", name)
	return nil
}

func readinessText(r service.Readiness) string {
	if r == service.Ready {
		return "created and loaded"
	}
	return "already loaded"
}
