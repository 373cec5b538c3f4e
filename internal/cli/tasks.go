package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskdeck/taskdeck/pkg/coordinator"
	"github.com/taskdeck/taskdeck/pkg/models"
)

func newAddCmd(app *App) *cobra.Command {
	var category, priority, due string
	var tags []string

	cmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Add a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}

			req := models.CreateTaskRequest{
				Text:     strings.Join(args, " "),
				Category: models.TaskCategory(category),
				Priority: models.TaskPriority(priority),
				Tags:     tags,
			}
			if due != "" {
				parsed, err := parseDue(due)
				if err != nil {
					return err
				}
				req.DueDate = &parsed
			}

			if err := session.Coordinator.Create(cmd.Context(), req); err != nil {
				return bannerError(cmd, session.Coordinator)
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Category (work|personal|shopping|health)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Priority (high|medium|low)")
	cmd.Flags().StringVar(&due, "due", "", "Due date (2006-01-02 or RFC 3339)")
	cmd.Flags().StringSliceVar(&tags, "tag", nil, "Tag (repeatable)")
	return cmd
}

func newListCmd(app *App) *cobra.Command {
	var category, priority string
	var completed, pending bool

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}

			filter := models.TaskFilter{
				Category: models.TaskCategory(category),
				Priority: models.TaskPriority(priority),
			}
			if completed {
				done := true
				filter.Completed = &done
			} else if pending {
				done := false
				filter.Completed = &done
			}

			if err := session.Coordinator.Refresh(cmd.Context(), filter); err != nil {
				return bannerError(cmd, session.Coordinator)
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority")
	cmd.Flags().BoolVar(&completed, "done", false, "Only completed tasks")
	cmd.Flags().BoolVar(&pending, "pending", false, "Only pending tasks")
	return cmd
}

func newDoneCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>...",
		Short: "Toggle completion of one or more tasks",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}
			if err := refresh(cmd, session); err != nil {
				return err
			}

			for _, id := range args {
				if err := session.Coordinator.Toggle(cmd.Context(), id); err != nil {
					return bannerError(cmd, session.Coordinator)
				}
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}
}

func newEditCmd(app *App) *cobra.Command {
	var text, category, priority, due string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Edit a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}
			if err := refresh(cmd, session); err != nil {
				return err
			}

			req := models.UpdateTaskRequest{}
			if cmd.Flags().Changed("text") {
				req.Text = &text
			}
			if cmd.Flags().Changed("category") {
				c := models.TaskCategory(category)
				req.Category = &c
			}
			if cmd.Flags().Changed("priority") {
				p := models.TaskPriority(priority)
				req.Priority = &p
			}
			if cmd.Flags().Changed("due") {
				parsed, err := parseDue(due)
				if err != nil {
					return err
				}
				req.DueDate = &parsed
			}

			if err := session.Coordinator.Update(cmd.Context(), args[0], req); err != nil {
				return bannerError(cmd, session.Coordinator)
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "New task text")
	cmd.Flags().StringVarP(&category, "category", "c", "", "New category")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "New priority")
	cmd.Flags().StringVar(&due, "due", "", "New due date")
	return cmd
}

func newRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>...",
		Aliases: []string{"remove"},
		Short:   "Delete one or more tasks",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}
			if err := refresh(cmd, session); err != nil {
				return err
			}

			for _, id := range args {
				if err := session.Coordinator.Delete(cmd.Context(), id); err != nil {
					return bannerError(cmd, session.Coordinator)
				}
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}
}

func newMoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mv <id> <position>",
		Short: "Move a task to a new position (0-based)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}
			if err := refresh(cmd, session); err != nil {
				return err
			}

			var position int
			if _, err := fmt.Sscanf(args[1], "%d", &position); err != nil {
				return fmt.Errorf("position must be a number, got %q", args[1])
			}

			ids := moveID(session.Store.IDs(), args[0], position)
			if ids == nil {
				return fmt.Errorf("no task with id %q", args[0])
			}

			if err := session.Coordinator.Reorder(cmd.Context(), ids); err != nil {
				return bannerError(cmd, session.Coordinator)
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}
}

func newSearchCmd(app *App) *cobra.Command {
	var category, priority string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tasks by text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}

			filter := models.TaskFilter{
				Category: models.TaskCategory(category),
				Priority: models.TaskPriority(priority),
			}
			query := strings.Join(args, " ")
			if err := session.Coordinator.Search(cmd.Context(), query, filter); err != nil {
				return bannerError(cmd, session.Coordinator)
			}

			results := session.Coordinator.SearchResults()
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no tasks match %q\n", query)
				return nil
			}
			printTasks(cmd, results)
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "", "Filter by category")
	cmd.Flags().StringVarP(&priority, "priority", "p", "", "Filter by priority")
	return cmd
}

func newClearCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete all completed tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}
			if err := refresh(cmd, session); err != nil {
				return err
			}

			if err := session.Coordinator.ClearCompleted(cmd.Context()); err != nil {
				return bannerError(cmd, session.Coordinator)
			}
			printTasks(cmd, session.Coordinator.Tasks())
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	var wait time.Duration

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check backend health",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := app.connect()
			if err != nil {
				return err
			}

			if wait > 0 {
				if err := session.Client.WaitReady(cmd.Context(), wait); err != nil {
					return fmt.Errorf("backend did not become ready within %s: %w", wait, err)
				}
			} else if err := session.Client.HealthCheck(cmd.Context()); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "backend %s is healthy\n", app.cfg.Server.BaseURL)
			stats := session.Coordinator.Gate().Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "  operations started: %d, rejected: %d, recovered: %d\n",
				stats.Begins, stats.Rejected, stats.Recovered)
			return nil
		},
	}

	cmd.Flags().DurationVar(&wait, "wait", 0, "Keep retrying until healthy or this much time has passed")
	return cmd
}

// refresh pulls the current list so id-based commands operate on fresh state.
func refresh(cmd *cobra.Command, session *Session) error {
	if err := session.Coordinator.Refresh(cmd.Context(), models.TaskFilter{}); err != nil {
		return bannerError(cmd, session.Coordinator)
	}
	return nil
}

// moveID returns ids with the given id moved to position, or nil when the id
// is not present.
func moveID(ids []string, id string, position int) []string {
	index := -1
	for i, candidate := range ids {
		if candidate == id {
			index = i
			break
		}
	}
	if index == -1 {
		return nil
	}

	rest := append(append([]string(nil), ids[:index]...), ids[index+1:]...)
	if position < 0 {
		position = 0
	}
	if position > len(rest) {
		position = len(rest)
	}
	out := make([]string, 0, len(ids))
	out = append(out, rest[:position]...)
	out = append(out, id)
	out = append(out, rest[position:]...)
	return out
}

// bannerError turns the coordinator's banner into the command error so the
// user sees the friendly message plus the recovery hint.
func bannerError(cmd *cobra.Command, coord *coordinator.Coordinator) error {
	banner := coord.Banner()
	if banner == nil {
		return fmt.Errorf("operation failed")
	}
	if banner.Hint != "" {
		return fmt.Errorf("%s (%s)", banner.Message, banner.Hint)
	}
	return fmt.Errorf("%s", banner.Message)
}

func printTasks(cmd *cobra.Command, tasks []*models.Task) {
	out := cmd.OutOrStdout()
	if len(tasks) == 0 {
		fmt.Fprintln(out, "no tasks")
		return
	}
	for _, t := range tasks {
		mark := " "
		if t.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("[%s] %-12s %s", mark, t.ID, t.Text)
		var extras []string
		if t.Category != "" {
			extras = append(extras, string(t.Category))
		}
		if t.Priority != "" {
			extras = append(extras, string(t.Priority))
		}
		if t.DueDate != nil {
			extras = append(extras, "due "+t.DueDate.Local().Format("2006-01-02"))
		}
		if len(t.Tags) > 0 {
			extras = append(extras, "#"+strings.Join(t.Tags, " #"))
		}
		if len(extras) > 0 {
			line += "  (" + strings.Join(extras, ", ") + ")"
		}
		fmt.Fprintln(out, line)
	}
}

func parseDue(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q: use 2006-01-02 or RFC 3339", raw)
}
