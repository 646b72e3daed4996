package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/streetmix/sx/internal/auth"
	"github.com/streetmix/sx/internal/config"
	"github.com/streetmix/sx/internal/localstore"
	"github.com/streetmix/sx/internal/mode"
	"github.com/streetmix/sx/internal/output"
)

var (
	watchMode   mode.Mode
	watchStreet string
	watchJSON   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Bootstrap, then follow sign-in changes made by other sx processes",
	Long: `Bootstraps the session and keeps running. When another sx process signs
in or out, the session here no longer matches durable storage: it is torn
down and bootstrapped again from storage. Stop with Ctrl-C.`,
	GroupID: "session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		initial := watchMode
		if !cmd.Flags().Changed("mode") && watchStreet != "" {
			initial = mode.ExistingStreet
		}

		for cycle := 1; ; cycle++ {
			reloaded, err := runWatchCycle(ctx, initial)
			if err != nil {
				output.Error("%v", err)
				return err
			}
			if !reloaded {
				return nil
			}
			slog.Info("watch: reload", "cycle", cycle)
			output.Info("Session changed in another process, reloading.")
		}
	},
}

// runWatchCycle runs one bootstrap and watches storage until a reload is
// requested (true) or ctx is done (false).
func runWatchCycle(ctx context.Context, initial mode.Mode) (bool, error) {
	reload := make(chan struct{}, 1)
	a, err := newApp(appOptions{
		mode:     initial,
		streetID: watchStreet,
		reloader: auth.ReloaderFunc(func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		}),
	})
	if err != nil {
		return false, err
	}
	defer a.Close()

	return followSession(ctx, a, config.GetWatchInterval(), reload)
}

// followSession bootstraps a and then follows changes to the durable sign-in
// until reload fires (true) or ctx is done (false). The watcher is armed
// before the bootstrap, so a change another process makes while the
// bootstrap is running is queued and handled once it finishes.
func followSession(ctx context.Context, a *app, interval time.Duration, reload <-chan struct{}) (bool, error) {
	cycleCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := a.storage.Watch(cycleCtx, interval, localstore.KeySignIn)

	if _, err := a.session.LoadSignIn(ctx); err != nil {
		output.Warning("%v", err)
	}
	if err := printReport(a, watchJSON); err != nil {
		return false, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.session.Watch(cycleCtx, events)
	}()

	var reloaded bool
	select {
	case <-ctx.Done():
	case <-reload:
		reloaded = true
	}
	cancel()
	<-done
	return reloaded, nil
}

func init() {
	watchMode = mode.Continue
	watchCmd.Flags().Var(&watchMode, "mode", "initial mode for every bootstrap")
	watchCmd.Flags().StringVar(&watchStreet, "street", "", "street id to open (implies existing-street)")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "output JSON")
	rootCmd.AddCommand(watchCmd)
}
