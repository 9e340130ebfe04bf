package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"checkbook-calc/internal/calculator"
	"checkbook-calc/internal/config"
	"checkbook-calc/internal/desk"
	"checkbook-calc/internal/observability"
	"checkbook-calc/internal/store"
	"checkbook-calc/internal/tui"
)

func tuiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive calculator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			st, err := openStore(cfg, false)
			if err != nil {
				return err
			}

			ctx := signalContext()
			d := desk.New(ctx, st, desk.WithUndoDepth(cfg.Calculator.UndoDepth))
			defer d.Close()

			return tui.Run(ctx, d, cfg.FeedbackDismiss())
		},
	}
}

func evalCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval <keys>...",
		Short: "Press a key sequence and print the result",
		Long: `Press a key sequence such as "12.5 x 4 =" or "100-25.50=" and print
the display. Words naming a key (undo, redo, AC, C, neg, back, recover) are
pressed whole; everything else one character at a time.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := initLogger(cmd); err != nil {
				return err
			}
			ephemeral, _ := cmd.Flags().GetBool("ephemeral")
			modeName, _ := cmd.Flags().GetString("mode")

			keys, err := desk.ParseSequence(strings.Join(args, " "))
			if err != nil {
				return err
			}

			st, err := openStore(cfg, ephemeral)
			if err != nil {
				return err
			}

			ctx := context.Background()
			d := desk.New(ctx, st, desk.WithUndoDepth(cfg.Calculator.UndoDepth))
			defer d.Close()

			if modeName != "" {
				mode, err := calculator.ParseMode(modeName)
				if err != nil {
					return err
				}
				s := d.Settings()
				s.Mode = mode
				d.ApplySettings(ctx, s)
			}

			view := d.View()
			for _, k := range keys {
				if view, err = d.Press(ctx, k); err != nil {
					return err
				}
			}

			fmt.Print(formatEval(view))
			return nil
		},
	}
	cmd.Flags().String("mode", "", "checkbook or scientific (default: stored setting)")
	cmd.Flags().Bool("ephemeral", false, "keep history in memory only")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage stored calculations",
	}
	cmd.AddCommand(historyListCmd(), historyDeleteCmd(), historyPurgeCmd())
	return cmd
}

func historyListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored calculations, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromFlags(cmd)
			if err != nil {
				return err
			}
			entries, err := st.History(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatHistory(entries))
			return nil
		},
	}
}

func historyDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one stored calculation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromFlags(cmd)
			if err != nil {
				return err
			}
			if err := st.DeleteHistoryEntry(context.Background(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted %s\n", args[0])
			return nil
		},
	}
}

func historyPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete calculations older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			d := desk.New(ctx, st)
			defer d.Close()

			days, _ := cmd.Flags().GetInt("days")
			removed, days, err := d.PurgeHistory(ctx, days)
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries older than %d days\n", removed, days)
			return nil
		},
	}
	cmd.Flags().Int("days", 0, "retention in days (0 = stored setting)")
	return cmd
}

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
	}
	cmd.AddCommand(settingsShowCmd(), settingsSetCmd())
	return cmd
}

func settingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromFlags(cmd)
			if err != nil {
				return err
			}
			s, err := st.LoadSettings(context.Background())
			if err != nil {
				return err
			}
			fmt.Print(formatSettings(s))
			return nil
		},
	}
}

func settingsSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key=value>...",
		Short: "Change settings (mode, currency, retention, theme, sound, haptics)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storeFromFlags(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			d := desk.New(ctx, st)
			defer d.Close()

			s := d.Settings()
			for _, arg := range args {
				key, value, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("expected key=value, got %q", arg)
				}
				if err := applySetting(&s, key, value); err != nil {
					return err
				}
			}
			if err := d.UpdateSettings(ctx, s); err != nil {
				return err
			}
			fmt.Print(formatSettings(s))
			return nil
		},
	}
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create checkbook.toml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.Getwd()
			if err != nil {
				return fmt.Errorf("get working directory: %w", err)
			}
			path, err := config.InitFile(dir)
			if err != nil {
				return err
			}
			fmt.Printf("Created %s\n", path)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

// loadConfig loads --config and applies --data-dir.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		cfg.Storage.DataDir = dir
	}
	return cfg, nil
}

func initLogger(cmd *cobra.Command) error {
	level, _ := cmd.Flags().GetString("log-level")
	return observability.InitLogger(level)
}

func openStore(cfg *config.Config, ephemeral bool) (*store.FileStore, error) {
	opts := []store.Option{store.WithMaxEntries(cfg.Storage.MaxHistoryEntries)}
	if ephemeral {
		opts = append(opts, store.WithFs(afero.NewMemMapFs()))
	}
	return store.NewFileStore(cfg.Storage.DataDir, opts...)
}

func storeFromFlags(cmd *cobra.Command) (*store.FileStore, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := initLogger(cmd); err != nil {
		return nil, err
	}
	return openStore(cfg, false)
}

// applySetting sets one named field of s. Validation happens on save.
func applySetting(s *store.Settings, key, value string) error {
	switch strings.ToLower(key) {
	case "mode":
		mode, err := calculator.ParseMode(value)
		if err != nil {
			return err
		}
		s.Mode = mode
	case "currency", "currency_symbol":
		s.CurrencySymbol = value
	case "retention", "retention_days":
		days, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("retention: %w", err)
		}
		s.RetentionDays = days
	case "theme":
		s.Theme = value
	case "sound", "sound_enabled":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("sound: %w", err)
		}
		s.SoundEnabled = on
	case "haptics", "haptics_enabled":
		on, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("haptics: %w", err)
		}
		s.HapticsEnabled = on
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}

// formatEval renders the state after an eval run.
func formatEval(v desk.View) string {
	var b strings.Builder
	if v.State.Expression != "" {
		fmt.Fprintf(&b, "%s\n", v.State.Expression)
	}
	if v.State.Error {
		fmt.Fprintf(&b, "Error: %s\n", v.State.ErrorMessage)
		return b.String()
	}
	fmt.Fprintf(&b, "%s\n", v.State.Display)
	return b.String()
}

// formatHistory renders entries as an aligned table.
func formatHistory(entries []store.HistoryEntry) string {
	if len(entries) == 0 {
		return "No calculations stored\n"
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tWHEN\tEXPRESSION\tRESULT")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Timestamp.Local().Format("2006-01-02 15:04"), e.Expression, e.DisplayResult)
	}
	_ = tw.Flush()
	return b.String()
}

func formatSettings(s store.Settings) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mode            %s\n", s.Mode)
	fmt.Fprintf(&b, "currency        %s\n", s.CurrencySymbol)
	fmt.Fprintf(&b, "retention_days  %d\n", s.RetentionDays)
	fmt.Fprintf(&b, "theme           %s\n", s.Theme)
	fmt.Fprintf(&b, "sound           %t\n", s.SoundEnabled)
	fmt.Fprintf(&b, "haptics         %t\n", s.HapticsEnabled)
	return b.String()
}
