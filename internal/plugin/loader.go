package plugin

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// moduleKey is the name modules are dispensed under.
const moduleKey = "module"

// Handshake must match between the host and every module binary.
var Handshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "FXHOST_MODULE",
	MagicCookieValue: "c3f8a1d2-6b0e-4f47-9a3c-5d2e7b81f0aa",
}

// PluginSet returns the plugin map for a host (impl nil) or a module.
func PluginSet(impl Module) goplugin.PluginSet {
	return goplugin.PluginSet{moduleKey: &ModulePlugin{Impl: impl}}
}

// ProcessLoader starts module binaries as child processes and talks to them
// over net/rpc.
type ProcessLoader struct {
	StartTimeout time.Duration
	Output       io.Writer
	Logger       *slog.Logger
}

// NewLoader creates a ProcessLoader. A zero startTimeout uses go-plugin's default.
func NewLoader(startTimeout time.Duration, logger *slog.Logger) *ProcessLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessLoader{StartTimeout: startTimeout, Output: os.Stderr, Logger: logger}
}

// Load starts path and dispenses its module. The dispose func kills the
// child process.
func (l *ProcessLoader) Load(ctx context.Context, path string) (Module, func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	level := hclog.Warn
	if l.Logger.Enabled(ctx, slog.LevelDebug) {
		level = hclog.Debug
	}
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  Handshake,
		Plugins:          PluginSet(nil),
		Cmd:              exec.Command(path),
		StartTimeout:     l.StartTimeout,
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolNetRPC},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "module",
			Output: l.Output,
			Level:  level,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to start module process: %w", err)
	}
	raw, err := rpcClient.Dispense(moduleKey)
	if err != nil {
		client.Kill()
		return nil, nil, fmt.Errorf("failed to dispense module: %w", err)
	}
	module, ok := raw.(Module)
	if !ok {
		client.Kill()
		return nil, nil, fmt.Errorf("unexpected module type %T", raw)
	}

	l.Logger.Debug("Module process started", "module", path, "protocol", client.Protocol())
	return module, client.Kill, nil
}

// Serve runs impl as a module process. It blocks until the host disconnects
// and must be called from the module binary's main.
func Serve(impl Module) {
	goplugin.Serve(&goplugin.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginSet(impl),
	})
}
