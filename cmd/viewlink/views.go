package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/baiirun/viewlink/internal/model"
)

var (
	flagDue      string
	flagStart    string
	flagEnd      string
	flagAssignee string
	flagDesc     string
	flagParent   string
	flagLane     string
	flagProgress int
	flagUndo     bool
)

var todoCmd = &cobra.Command{
	Use:   "todo",
	Short: "Manage todo items",
}

var todoAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a todo item",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := parseDate(flagDue)
		if err != nil {
			return err
		}
		rec, err := application.Todos.Create(cmd.Context(), model.NewTodo{
			Title:       strings.Join(args, " "),
			Description: flagDesc,
			DueDate:     due,
			Assignee:    flagAssignee,
		})
		if err != nil {
			return err
		}
		return printCreated(rec)
	},
}

var todoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List todo items",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Todos.Fetch(cmd.Context()); err != nil {
			return err
		}
		todos := application.Todos.Todos()
		if flagJSON {
			return printJSON(todos)
		}
		if len(todos) == 0 {
			fmt.Println(dimStyle.Render("No todos"))
			return nil
		}
		for _, t := range todos {
			check := "[ ]"
			if t.Completed {
				check = okStyle.Render("[x]")
			}
			line := fmt.Sprintf("%s %s  %s", check, dimStyle.Render(t.ID), t.Title)
			if t.DueDate != nil {
				line += dimStyle.Render("  due " + formatDate(t.DueDate))
			}
			fmt.Println(line)
		}
		return nil
	},
}

var todoDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a todo complete and sync it to linked views",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := application.Todos.SetCompleted(ctx, args[0], !flagUndo); err != nil {
			return err
		}
		return syncAndReport(cmd, model.ViewTodo, args[0])
	},
}

var todoRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a todo and its link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteTask(cmd, model.ViewTodo, args[0])
	},
}

var wbsCmd = &cobra.Command{
	Use:   "wbs",
	Short: "Manage the work breakdown structure",
}

var wbsAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a WBS node",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDate(flagStart)
		if err != nil {
			return err
		}
		end, err := parseDate(flagEnd)
		if err != nil {
			return err
		}
		in := model.NewWBSTask{
			Name:        strings.Join(args, " "),
			Description: flagDesc,
			StartDate:   start,
			EndDate:     end,
			Assignee:    flagAssignee,
		}
		if flagParent != "" {
			parent := flagParent
			in.ParentID = &parent
		}
		rec, err := application.WBS.Create(cmd.Context(), in)
		if err != nil {
			return err
		}
		return printCreated(rec)
	},
}

var wbsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the WBS tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.WBS.Fetch(cmd.Context()); err != nil {
			return err
		}
		tasks := application.WBS.Tasks()
		if flagJSON {
			return printJSON(tasks)
		}
		if len(tasks) == 0 {
			fmt.Println(dimStyle.Render("No WBS tasks"))
			return nil
		}
		children := map[string][]model.WBSTask{}
		for _, t := range tasks {
			parent := ""
			if t.ParentID != nil {
				parent = *t.ParentID
			}
			children[parent] = append(children[parent], t)
		}
		printWBSTree(children, "", "", 0)
		return nil
	},
}

func printWBSTree(children map[string][]model.WBSTask, parent, prefix string, depth int) {
	for i, t := range children[parent] {
		number := strconv.Itoa(i + 1)
		if prefix != "" {
			number = prefix + "." + number
		}
		fmt.Printf("%s%s %s  %s %s\n",
			strings.Repeat("  ", depth), labelStyle.Render(number), t.Name,
			dimStyle.Render(t.ID), dimStyle.Render(fmt.Sprintf("%s %d%%", t.Status, t.Progress)))
		printWBSTree(children, t.ID, number, depth+1)
	}
}

var wbsProgressCmd = &cobra.Command{
	Use:   "progress <id> <0-100>",
	Short: "Set a WBS node's progress and sync it to linked views",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		progress, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid progress %q", args[1])
		}
		if err := application.WBS.SetProgress(cmd.Context(), args[0], progress); err != nil {
			return err
		}
		return syncAndReport(cmd, model.ViewWBS, args[0])
	},
}

var wbsRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a WBS node and its link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteTask(cmd, model.ViewWBS, args[0])
	},
}

var kanbanCmd = &cobra.Command{
	Use:   "kanban",
	Short: "Manage the kanban board",
}

var kanbanLaneCmd = &cobra.Command{
	Use:   "lane",
	Short: "Manage kanban lanes",
}

var kanbanLaneAddCmd = &cobra.Command{
	Use:   "add <id> <title>",
	Short: "Create a lane",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		lane := model.KanbanLane{ID: args[0], Title: strings.Join(args[1:], " ")}
		if err := application.Kanban.CreateLane(cmd.Context(), lane); err != nil {
			return err
		}
		if flagJSON {
			return printJSON(lane)
		}
		fmt.Printf("Created lane %s\n", lane.ID)
		return nil
	},
}

var kanbanLaneListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lanes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Kanban.Fetch(cmd.Context()); err != nil {
			return err
		}
		lanes := application.Kanban.Lanes()
		if flagJSON {
			return printJSON(lanes)
		}
		for _, l := range lanes {
			fmt.Printf("%s  %s\n", labelStyle.Render(l.ID), l.Title)
		}
		return nil
	},
}

var kanbanAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a card",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := parseDate(flagDue)
		if err != nil {
			return err
		}
		rec, err := application.Kanban.Create(cmd.Context(), model.NewKanbanCard{
			LaneID:      flagLane,
			Title:       strings.Join(args, " "),
			Description: flagDesc,
			DueDate:     due,
			Assignee:    flagAssignee,
		})
		if err != nil {
			return err
		}
		return printCreated(rec)
	},
}

var kanbanListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the board",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Kanban.Fetch(cmd.Context()); err != nil {
			return err
		}
		cards := application.Kanban.Cards()
		if flagJSON {
			return printJSON(cards)
		}
		for _, l := range application.Kanban.Lanes() {
			fmt.Println(titleStyle.Render(l.Title))
			for _, c := range cards {
				if c.LaneID == l.ID {
					fmt.Printf("  %s  %s\n", dimStyle.Render(c.ID), c.Title)
				}
			}
		}
		return nil
	},
}

var kanbanMoveCmd = &cobra.Command{
	Use:   "move <id> <lane>",
	Short: "Move a card to another lane",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Kanban.Move(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		if !flagJSON {
			fmt.Printf("Moved %s to %s\n", args[0], args[1])
		}
		return nil
	},
}

var kanbanRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a card and its link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteTask(cmd, model.ViewKanban, args[0])
	},
}

var ganttCmd = &cobra.Command{
	Use:   "gantt",
	Short: "Manage gantt bars",
}

var ganttAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a gantt bar",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := parseDate(flagStart)
		if err != nil {
			return err
		}
		end, err := parseDate(flagEnd)
		if err != nil {
			return err
		}
		if start == nil || end == nil {
			return fmt.Errorf("--start and --end are required")
		}
		rec, err := application.Gantt.Create(cmd.Context(), model.NewGanttTask{
			Name:      strings.Join(args, " "),
			StartDate: *start,
			EndDate:   *end,
			Progress:  flagProgress,
			Assignee:  flagAssignee,
		})
		if err != nil {
			return err
		}
		return printCreated(rec)
	},
}

var ganttListCmd = &cobra.Command{
	Use:   "list",
	Short: "List gantt bars",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Gantt.Fetch(cmd.Context()); err != nil {
			return err
		}
		tasks := application.Gantt.Tasks()
		if flagJSON {
			return printJSON(tasks)
		}
		for _, t := range tasks {
			fmt.Printf("%s  %s  %s -> %s  %d%%\n", dimStyle.Render(t.ID), t.Name,
				formatDate(&t.StartDate), formatDate(&t.EndDate), t.Progress)
		}
		return nil
	},
}

var ganttDepCmd = &cobra.Command{
	Use:   "dep <id> <depends-on-id>",
	Short: "Make one bar start after another finishes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := application.Gantt.AddDep(ctx, args[0], args[1]); err != nil {
			return err
		}
		deps, err := application.Gantt.Deps(ctx, args[0])
		if err != nil {
			return err
		}
		if flagJSON {
			return printJSON(deps)
		}
		fmt.Printf("%s depends on %s\n", args[0], strings.Join(deps, ", "))
		return nil
	},
}

var ganttRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a gantt bar and its link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return deleteTask(cmd, model.ViewGantt, args[0])
	},
}

func printCreated(rec model.Record) error {
	if flagJSON {
		return printJSON(rec)
	}
	fmt.Println(rec.RecordID())
	return nil
}

func deleteTask(cmd *cobra.Command, view model.ViewType, id string) error {
	if err := application.Client.DeleteTask(cmd.Context(), view, id); err != nil {
		return err
	}
	if !flagJSON {
		fmt.Printf("Deleted %s %s\n", view, id)
	}
	return nil
}

func init() {
	todoAddCmd.Flags().StringVar(&flagDue, "due", "", "Due date (YYYY-MM-DD)")
	todoAddCmd.Flags().StringVar(&flagAssignee, "assignee", "", "Assignee")
	todoAddCmd.Flags().StringVar(&flagDesc, "desc", "", "Description")
	todoDoneCmd.Flags().BoolVar(&flagUndo, "undo", false, "Mark incomplete instead")
	todoCmd.AddCommand(todoAddCmd, todoListCmd, todoDoneCmd, todoRmCmd)

	wbsAddCmd.Flags().StringVar(&flagParent, "parent", "", "Parent node ID")
	wbsAddCmd.Flags().StringVar(&flagStart, "start", "", "Start date (YYYY-MM-DD)")
	wbsAddCmd.Flags().StringVar(&flagEnd, "end", "", "End date (YYYY-MM-DD)")
	wbsAddCmd.Flags().StringVar(&flagAssignee, "assignee", "", "Assignee")
	wbsAddCmd.Flags().StringVar(&flagDesc, "desc", "", "Description")
	wbsCmd.AddCommand(wbsAddCmd, wbsListCmd, wbsProgressCmd, wbsRmCmd)

	kanbanAddCmd.Flags().StringVar(&flagLane, "lane", model.DefaultKanbanLane, "Lane ID")
	kanbanAddCmd.Flags().StringVar(&flagDue, "due", "", "Due date (YYYY-MM-DD)")
	kanbanAddCmd.Flags().StringVar(&flagAssignee, "assignee", "", "Assignee")
	kanbanAddCmd.Flags().StringVar(&flagDesc, "desc", "", "Description")
	kanbanLaneCmd.AddCommand(kanbanLaneAddCmd, kanbanLaneListCmd)
	kanbanCmd.AddCommand(kanbanLaneCmd, kanbanAddCmd, kanbanListCmd, kanbanMoveCmd, kanbanRmCmd)

	ganttAddCmd.Flags().StringVar(&flagStart, "start", "", "Start date (YYYY-MM-DD)")
	ganttAddCmd.Flags().StringVar(&flagEnd, "end", "", "End date (YYYY-MM-DD)")
	ganttAddCmd.Flags().IntVar(&flagProgress, "progress", 0, "Progress 0-100")
	ganttAddCmd.Flags().StringVar(&flagAssignee, "assignee", "", "Assignee")
	ganttCmd.AddCommand(ganttAddCmd, ganttListCmd, ganttDepCmd, ganttRmCmd)

	rootCmd.AddCommand(todoCmd, wbsCmd, kanbanCmd, ganttCmd)
}
