package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Iron-Ham/arbor/internal/config"
	"github.com/Iron-Ham/arbor/internal/logging"
	"github.com/Iron-Ham/arbor/internal/session"
	"github.com/Iron-Ham/arbor/internal/tui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the worker tree and run until stopped",
	Long: `Run builds the full worker tree, prints the construction log and the
tree snapshot, then keeps the workers running until interrupted (or until
--for elapses). On stop every worker is terminated and every node reclaimed,
children before parents.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().IntP("depth", "d", 0, "tree depth (overrides tree.max_depth)")
	runCmd.Flags().BoolP("watch", "w", false, "show the live tree in an interactive view")
	runCmd.Flags().Duration("for", 0, "stop automatically after this duration (0 runs until interrupted)")
	_ = viper.BindPFlag("tree.max_depth", runCmd.Flags().Lookup("depth"))
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() {
		_ = logger.Close()
	}()

	watch, _ := cmd.Flags().GetBool("watch")
	if watch && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("--watch requires a terminal")
	}

	events := os.Stdout
	sess := session.New(cfg, logger, events)

	if err := sess.Start(cfg.Tree.MaxDepth); err != nil {
		// Partial success: report the failure but keep running whatever was
		// built, so it is observable and torn down in order below.
		fmt.Fprintf(os.Stderr, "arbor: construction incomplete: %v\n", err)
	}

	if watch {
		app := tui.New(sess)
		if err := app.Run(); err != nil {
			_ = sess.Stop()
			return fmt.Errorf("watch view error: %w", err)
		}
		return sess.Stop()
	}

	waitForStop(cmd)
	return sess.Stop()
}

// waitForStop blocks until the host interrupts the process or the --for
// duration elapses.
func waitForStop(cmd *cobra.Command) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if d, _ := cmd.Flags().GetDuration("for"); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-sigCh:
		case <-timer.C:
		}
		return
	}

	<-sigCh
}
