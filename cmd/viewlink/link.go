package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/baiirun/viewlink/internal/model"
	"github.com/baiirun/viewlink/internal/transfer"
)

var (
	flagFrom   string
	flagTo     string
	flagNoSync bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database and the default kanban lanes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.SeedLanes(cmd.Context()); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]any{
				"db_path": application.Config.DBPath,
				"lanes":   application.Config.DefaultLanes,
			})
		}
		fmt.Printf("Initialized viewlink at %s\n", application.Config.DBPath)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show link registry status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		version, err := application.DB.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		report, err := application.DB.LinkReport(ctx)
		if err != nil {
			return err
		}
		if flagJSON {
			out := StatusJSON{
				DBPath:        application.Config.DBPath,
				SchemaVersion: version,
				Groups:        report.Groups,
				Links:         report.Links,
				Views:         map[string]ViewStatusJSON{},
			}
			for v, c := range report.ByView {
				out.Views[string(v)] = ViewStatusJSON(c)
			}
			return printJSON(out)
		}
		fmt.Println(renderStatus(application.Config.DBPath, version, report))
		return nil
	},
}

var transferCmd = &cobra.Command{
	Use:   "transfer <id>...",
	Short: "Copy tasks into other views and link the copies",
	Long: `Copy each task into every target view and link it with its copies.

  viewlink transfer --from todo --to wbs,kanban td-1a2b3c4d td-5e6f7a8b

Sync is on for the new links unless --no-sync is given or
transfer.sync_default is false.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, err := model.ParseViewType(flagFrom)
		if err != nil {
			return err
		}
		targets, err := model.ParseViewTypes(flagTo)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("--to is required")
		}

		res, err := application.Client.TransferTasks(cmd.Context(), transfer.Request{
			SourceView:  from,
			TaskIDs:     args,
			TargetViews: targets,
			SyncEnabled: application.Config.SyncDefault && !flagNoSync,
		})
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(res)
		}
		fmt.Println(renderTransfer(res))
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync <view> <id>",
	Short: "Mirror a task's fields into its linked copies",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := model.ParseViewType(args[0])
		if err != nil {
			return err
		}
		return syncAndReport(cmd, view, args[1])
	},
}

var linkCmd = &cobra.Command{
	Use:   "link",
	Short: "Inspect and manage task links",
}

var linkShowCmd = &cobra.Command{
	Use:   "show <view> <id>",
	Short: "Show the link group of a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := model.ParseViewType(args[0])
		if err != nil {
			return err
		}
		g, err := application.Client.Group(cmd.Context(), view, args[1])
		if err != nil {
			return err
		}
		if g == nil {
			if flagJSON {
				fmt.Println("null")
				return nil
			}
			fmt.Println(dimStyle.Render(fmt.Sprintf("%s %s is not linked", view, args[1])))
			return nil
		}
		if flagJSON {
			return printJSON(toGroupJSON(g))
		}
		fmt.Println(renderGroup(g))
		return nil
	},
}

var linkToggleCmd = &cobra.Command{
	Use:   "toggle <view> <id> <on|off>",
	Short: "Turn sync on or off for one task",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		view, err := model.ParseViewType(args[0])
		if err != nil {
			return err
		}
		enabled, err := parseOnOff(args[2])
		if err != nil {
			return err
		}
		link, err := application.Client.ToggleSync(cmd.Context(), view, args[1], enabled)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(toLinkJSON(*link))
		}
		fmt.Printf("%s %s: %s\n", view, args[1], syncLabel(link.SyncEnabled))
		return nil
	},
}

var linkGroupSyncCmd = &cobra.Command{
	Use:   "group-sync <unified-id> <on|off>",
	Short: "Turn sync on or off for every task in a group",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUnifiedID(args[0])
		if err != nil {
			return err
		}
		enabled, err := parseOnOff(args[1])
		if err != nil {
			return err
		}
		n, err := application.Client.ToggleGroupSync(cmd.Context(), id, enabled)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]any{"unified_id": id, "sync_enabled": enabled, "links": n})
		}
		fmt.Printf("%s: %s for %d links\n", id, syncLabel(enabled), n)
		return nil
	},
}

var linkRmGroupCmd = &cobra.Command{
	Use:   "rm-group <unified-id>",
	Short: "Unlink every task in a group (the tasks are kept)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseUnifiedID(args[0])
		if err != nil {
			return err
		}
		n, err := application.Client.DeleteGroup(cmd.Context(), id)
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(map[string]any{"unified_id": id, "removed": n})
		}
		fmt.Printf("Removed %d links from %s\n", n, id)
		return nil
	},
}

func parseUnifiedID(s string) (model.UnifiedID, error) {
	view, original, err := model.ParseUnifiedID(s)
	if err != nil {
		return "", err
	}
	return model.NewUnifiedID(view, original), nil
}

// syncAndReport runs a sync after an in-place edit and prints the outcome.
func syncAndReport(cmd *cobra.Command, view model.ViewType, id string) error {
	res, err := application.Client.SyncTask(cmd.Context(), view, id)
	if res != nil {
		if flagJSON {
			if jerr := printJSON(toSyncJSON(res)); jerr != nil {
				return jerr
			}
		} else {
			fmt.Println(renderSync(res))
		}
	}
	return err
}

func init() {
	transferCmd.Flags().StringVar(&flagFrom, "from", "", "Source view (todo, wbs, kanban, gantt)")
	transferCmd.Flags().StringVar(&flagTo, "to", "", "Comma-separated target views")
	transferCmd.Flags().BoolVar(&flagNoSync, "no-sync", false, "Create the links with sync off")
	_ = transferCmd.MarkFlagRequired("from")
	_ = transferCmd.MarkFlagRequired("to")

	linkCmd.AddCommand(linkShowCmd, linkToggleCmd, linkGroupSyncCmd, linkRmGroupCmd)
	rootCmd.AddCommand(initCmd, statusCmd, transferCmd, syncCmd, linkCmd)
}
