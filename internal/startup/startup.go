// Package startup runs one-time hooks before the bridge accepts requests.
package startup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/codex-k8s/command-bridge/internal/dsl"
	"github.com/codex-k8s/command-bridge/internal/executil"
	"github.com/codex-k8s/command-bridge/internal/timeutil"
)

// Run executes configured startup hooks sequentially and stops at the first failure.
func Run(ctx context.Context, hooks []dsl.HookConfig, logger *slog.Logger) error {
	for idx, hook := range hooks {
		if strings.TrimSpace(hook.Command) == "" {
			continue
		}
		if err := runHook(ctx, idx, hook, logger); err != nil {
			return err
		}
	}
	return nil
}

func runHook(ctx context.Context, idx int, hook dsl.HookConfig, logger *slog.Logger) error {
	timeout, err := timeutil.ParseDuration(hook.Timeout)
	if err != nil {
		return fmt.Errorf("startup hook %d: invalid timeout: %w", idx, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	if logger != nil {
		logger.Info("running startup hook", "index", idx)
	}
	res, err := executil.Run(ctx, executil.Spec{
		Command: hook.Command,
		Args:    hook.Args,
		Env:     hook.Env,
	}, executil.TemplateData{})
	output := strings.TrimSpace(res.Output)
	if err != nil {
		if logger != nil && output != "" {
			logger.Error("startup hook failed", "index", idx, "exit_code", res.ExitCode, "output", output)
		}
		return fmt.Errorf("startup hook %d failed: %w", idx, err)
	}
	if logger != nil && output != "" {
		logger.Info("startup hook output", "index", idx, "output", output)
	}
	return nil
}
