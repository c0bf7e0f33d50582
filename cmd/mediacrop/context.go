package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/heimdex/mediacrop/internal/config"
	"github.com/heimdex/mediacrop/internal/logging"
)

// cliLogLevel keeps one-shot commands quiet unless asked otherwise.
const cliLogLevel = "error"

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	cfg *config.FileConfig
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, logLevelFlag: logLevelFlag}
}

func (c *commandContext) ensureConfig() (*config.FileConfig, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := ""
	if c.configFlag != nil {
		path = *c.configFlag
	}
	cfg, err := config.New(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

// logLevel prefers the --log-level flag over fallback.
func (c *commandContext) logLevel(fallback string) string {
	if c.logLevelFlag != nil && *c.logLevelFlag != "" {
		return *c.logLevelFlag
	}
	return fallback
}

func (c *commandContext) cliLogger(w io.Writer) *slog.Logger {
	return logging.NewLoggerTo(w, c.logLevel(cliLogLevel))
}
