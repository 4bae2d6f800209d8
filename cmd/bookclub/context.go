package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"bookclub/internal/bookclub"
	"bookclub/internal/config"
	"bookclub/internal/logging"
	"bookclub/internal/store"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	jsonFlag     *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string, jsonFlag *bool) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		jsonFlag:     jsonFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, _, _, err := config.Load(c.configPath())
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

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

// logLevel returns the --log-level override, falling back to fallback.
func (c *commandContext) logLevel(fallback string) string {
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		return strings.TrimSpace(*c.logLevelFlag)
	}
	return fallback
}

// withServices opens the store, wires the services and runs fn. CLI logs go
// to stderr at warn unless --log-level says otherwise.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(*bookclub.Services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := logging.New(logging.Options{
		Level:            c.logLevel("warn"),
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(bookclub.New(cfg, st, logger))
}

// emit prints payload as JSON under --json, otherwise calls render.
func (c *commandContext) emit(cmd *cobra.Command, payload any, render func(out io.Writer)) error {
	if c.jsonOutput() {
		return writeJSON(cmd, payload)
	}
	render(cmd.OutOrStdout())
	return nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

// addReaderFlag registers the required --reader flag for commands that act
// on behalf of a reader.
func addReaderFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVarP(target, "reader", "r", "", "Acting reader id")
	_ = cmd.MarkFlagRequired("reader")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
