package cmd

import (
	"context"

	errors "github.com/Laisky/errors/v2"
	gconfig "github.com/Laisky/go-config/v2"
	gcmd "github.com/Laisky/go-utils/v6/cmd"
	"github.com/Laisky/zap"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/Laisky/agency-site/cmd/tui"
	"github.com/Laisky/agency-site/library/log"
)

var tuiCMD = &cobra.Command{
	Use:   "tui",
	Short: "Launch the admin console",
	Long: `Launch an interactive admin console for the agency site.

The console connects to the configured backends and offers:
  • Creating an admin user
  • Recomputing blog counters
  • Checking the configuration

Keyboard shortcuts:
  ↑/↓ or j/k  Navigate menu items
  Enter       Select / Confirm
  Tab         Next input field
  Esc         Go back
  q           Quit`,
	Args: gcmd.NoExtraArgs,
	PreRun: func(cmd *cobra.Command, args []string) {
		if err := initialize(context.Background(), cmd); err != nil {
			log.Logger.Panic("init", zap.Error(err))
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		if err := runTUI(context.Background()); err != nil {
			log.Logger.Panic("run tui", zap.Error(err))
		}
	},
}

func init() {
	rootCMD.AddCommand(tuiCMD)
}

// runTUI opens the backends and runs the console until the user quits
func runTUI(ctx context.Context) error {
	actions, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer actions.Close(ctx)

	title := gconfig.Shared.GetString("settings.site.name")
	if title == "" {
		title = "Agency Site"
	}

	p := tea.NewProgram(
		tui.NewModel(ctx, title+" admin", actions),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err = p.Run()
	return errors.WithStack(err)
}
