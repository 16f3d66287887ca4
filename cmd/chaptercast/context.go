package main

import (
	"database/sql"
	"strings"
	"sync"

	"chaptercast/internal/config"
	"chaptercast/internal/queue"
	"chaptercast/internal/records"
	"chaptercast/internal/storage"
)

// commandContext lazily resolves the configuration and database shared by
// subcommands. Commands that only mutate the shared database (add, retry)
// work whether or not the daemon is running: workers pick the tasks up as
// soon as one is.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withDB opens the shared database for the duration of fn.
func (c *commandContext) withDB(fn func(*config.Config, *sql.DB) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	db, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(cfg, db)
}

func (c *commandContext) withStore(fn func(*config.Config, *records.Store, *queue.Broker) error) error {
	return c.withDB(func(cfg *config.Config, db *sql.DB) error {
		return fn(cfg, records.NewStore(db), queue.NewBroker(db))
	})
}
