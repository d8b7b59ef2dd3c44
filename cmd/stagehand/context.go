package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"stagehand/internal/config"
	"stagehand/internal/ipc"
	"stagehand/internal/registry"
)

// cliContext carries the persistent flag bindings plus the lazily loaded
// configuration shared by every subcommand.
type cliContext struct {
	socketArg *string
	configArg *string

	cfgOnce sync.Once
	cfg     *config.Config
	cfgErr  error
}

func newCLIContext(socketFlag, configFlag *string) *cliContext {
	return &cliContext{socketArg: socketFlag, configArg: configFlag}
}

func (c *cliContext) resolveConfig() (*config.Config, error) {
	c.cfgOnce.Do(func() {
		c.cfg, c.cfgErr = loadCLIConfig(flagValue(c.configArg))
	})
	return c.cfg, c.cfgErr
}

func loadCLIConfig(path string) (*config.Config, error) {
	cfg, _, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cliContext) configOrNil() *config.Config {
	cfg, _ := c.resolveConfig()
	return cfg
}

func (c *cliContext) rawConfigPath() string {
	return flagValue(c.configArg)
}

// logDevelopment reports whether the daemon run logger should record caller
// sources. Console-format installs get the richer output.
func (c *cliContext) logDevelopment(cfg *config.Config) bool {
	return cfg != nil && strings.EqualFold(strings.TrimSpace(cfg.Logging.Format), "console")
}

// controlSocket resolves the socket flag, writing the default back into the
// flag so later reads within the same invocation agree on one path.
func (c *cliContext) controlSocket() string {
	if c.socketArg == nil {
		return fallbackSocketPath()
	}
	if flagValue(c.socketArg) == "" {
		*c.socketArg = fallbackSocketPath()
	}
	return *c.socketArg
}

func (c *cliContext) withDaemon(fn func(*ipc.Client) error) error {
	client, err := c.dialDaemon()
	if err != nil {
		return err
	}
	defer client.Close()
	return fn(client)
}

func (c *cliContext) dialDaemon() (*ipc.Client, error) {
	socket := c.controlSocket()
	client, err := ipc.Dial(socket)
	if err == nil {
		return client, nil
	}
	return nil, describeDialFailure(err, socket)
}

// withStore runs fn with a connected IPC client when the daemon is reachable,
// or with a directly opened registry store when it is not. Exactly one of the
// two arguments is non-nil.
func (c *cliContext) withStore(fn func(*ipc.Client, *registry.Store) error) error {
	client, err := ipc.Dial(c.controlSocket())
	if err == nil {
		defer client.Close()
		return fn(client, nil)
	}
	if !daemonUnreachable(err) {
		return describeDialFailure(err, c.controlSocket())
	}

	cfg, cfgErr := c.resolveConfig()
	if cfgErr != nil {
		return cfgErr
	}
	store, openErr := registry.Open(cfg)
	if openErr != nil {
		return fmt.Errorf("open registry: %w", openErr)
	}
	defer store.Close()
	return fn(nil, store)
}

func daemonUnreachable(err error) bool {
	return errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		os.IsNotExist(err) ||
		errors.Is(err, os.ErrNotExist)
}

func describeDialFailure(err error, socket string) error {
	if errors.Is(err, syscall.ENOENT) || os.IsNotExist(err) {
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `stagehand daemon start`", socket)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: socket %s refused the connection; the daemon may have exited uncleanly", socket)
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

// fallbackSocketPath mirrors the daemon's socket placement without requiring a
// loadable config file.
func fallbackSocketPath() string {
	if cfg, _, _, err := config.Load(""); err == nil {
		return cfg.SocketPath()
	}

	stateDir, err := config.ExpandPath("~/.local/share/stagehand")
	if err != nil {
		return filepath.Join(os.TempDir(), "stagehand.sock")
	}
	return filepath.Join(stateDir, "stagehand.sock")
}

func skipsConfigLoad(cmd *cobra.Command) bool {
	for node := cmd; node != nil; node = node.Parent() {
		if node.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
