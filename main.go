// Command forumcli is a terminal client for a posts/categories/comments
// community API. All forum data and authorization live server-side; the
// client keeps only the session and a per-category view of posts.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"forumcli/internal/apiclient"
	"forumcli/internal/config"
	"forumcli/internal/session"
	"forumcli/internal/store"
	"forumcli/internal/viewstate"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app wires config, logger, local store, API client, session and view state
// for one command invocation. The session restore runs here so every command
// starts with a defined session state.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	store   *store.Store
	api     *apiclient.Client
	session *session.Manager
	view    *viewstate.Controller
}

func newApp(configPath string, verbose bool) (*app, error) {
	logger := zap.NewNop()
	if verbose {
		var err error
		logger, err = zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.Store.Path, logger)
	if err != nil {
		return nil, err
	}

	api := apiclient.NewClient(cfg.API.BaseURL, cfg.Timeout(), logger)
	sess := session.NewManager(api, st, logger)
	if err := sess.Restore(); err != nil {
		st.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		api:     api,
		session: sess,
		view:    viewstate.NewController(api, sess, logger),
	}, nil
}

func (a *app) close() {
	_ = a.store.Close()
	_ = a.logger.Sync()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(home, ".forumcli", "config.yml")
}
