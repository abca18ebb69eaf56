package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	watchDI "github.com/fd1az/token-price-engine/business/watch/di"
	"github.com/fd1az/token-price-engine/pkg/ui"
)

const shutdownTimeout = 5 * time.Second

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cliMode, _ := cmd.Flags().GetBool("cli")
	// TUI is the default, CLI is for debugging
	tuiMode := !cliMode

	a, err := bootstrap(ctx, cmd, tuiMode)
	if err != nil {
		return err
	}
	defer a.close()

	if len(a.cfg.Watch.Tokens) == 0 {
		return errors.New("no tokens to watch: set watch.tokens or PRICED_WATCH_TOKENS")
	}

	if err := a.health.Start(); err != nil {
		a.log.Warn(ctx, "failed to start health server", "error", err)
	} else {
		a.log.Info(ctx, "health server started", "port", a.cfg.Health.Port)
	}
	defer a.health.Stop(context.Background())

	if tuiMode {
		return runTUI(ctx, a)
	}
	return runCLI(ctx, a)
}

func runCLI(ctx context.Context, a *application) error {
	a.log.Info(ctx, "starting token price engine",
		"version", version,
		"environment", a.cfg.App.Environment,
	)

	if err := a.mono.StartModules(ctx, a.modules...); err != nil {
		return fmt.Errorf("failed to start modules: %w", err)
	}

	watcher := watchDI.GetWatcher(a.mono.Services())
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Wait for shutdown
	<-ctx.Done()

	a.log.Info(ctx, "shutting down")

	if err := watcher.Stop(); err != nil {
		a.log.Error(ctx, "error stopping watcher", "error", err)
	}
	return nil
}

func runTUI(parent context.Context, a *application) error {
	// Quitting the TUI cancels the watcher as well
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Channel to receive StartModulesMsg signal
	startSignal := make(chan struct{}, 1)
	ui.OnStartModules = func() {
		select {
		case startSignal <- struct{}{}:
		default:
		}
	}

	// Create and start the TUI program immediately (shows welcome screen)
	p := tea.NewProgram(ui.New(), tea.WithAltScreen(), tea.WithContext(ctx))
	ui.Program = p

	errCh := make(chan error, 1)
	go func() {
		// Wait for welcome screen to complete
		select {
		case <-startSignal:
		case <-ctx.Done():
			errCh <- nil
			return
		}

		ui.Send(ui.StartupMsg{Step: "config", Status: "done"})
		for step, enabled := range map[string]bool{
			"ethereum": a.cfg.Chains.Ethereum.Enabled(),
			"bsc":      a.cfg.Chains.BSC.Enabled(),
			"solana":   a.cfg.Chains.Solana.Enabled(),
		} {
			status := "connecting"
			if !enabled {
				status = "skipped"
			}
			ui.Send(ui.StartupMsg{Step: step, Status: status})
		}

		// Connections happen here, the TUI shows progress
		if err := a.mono.StartModules(ctx, a.modules...); err != nil {
			err = fmt.Errorf("failed to start modules: %w", err)
			ui.Send(ui.ErrorMsg{Error: err})
			ui.Send(ui.StartupMsg{Step: "pricing", Status: "failed"})
			errCh <- err
			return
		}
		ui.Send(ui.StartupMsg{Step: "pricing", Status: "done"})

		watcher := watchDI.GetWatcher(a.mono.Services())
		if err := watcher.Start(ctx); err != nil {
			ui.Send(ui.ErrorMsg{Error: err})
			errCh <- err
			return
		}

		<-ctx.Done()

		if err := watcher.Stop(); err != nil {
			a.log.Error(ctx, "error stopping watcher", "error", err)
		}
		errCh <- nil
	}()

	// Run TUI (blocking)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("TUI error: %w", err)
	}

	cancel()
	select {
	case err := <-errCh:
		return err
	case <-time.After(shutdownTimeout):
		return nil
	}
}
