package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tasksync/internal/coordinator"
	"tasksync/internal/facade"
	"tasksync/internal/gateway"
	"tasksync/internal/models"
	"tasksync/internal/view"
)

func tasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Read and change tasks through the sync client",
	}
	cmd.AddCommand(tasksListCmd())
	cmd.AddCommand(tasksGetCmd())
	cmd.AddCommand(tasksCreateCmd())
	cmd.AddCommand(tasksUpdateCmd())
	cmd.AddCommand(tasksDeleteCmd())
	return cmd
}

func newFacade() *facade.Facade {
	client := gateway.NewClient(cfg.Client.APIURL, gateway.WithTimeout(cfg.Client.Timeout))
	return facade.New(coordinator.New(client,
		coordinator.WithOptimisticCreate(cfg.Client.OptimisticCreate),
	))
}

func tasksListCmd() *cobra.Command {
	var (
		category, status, priority string
		sortBy, order, output      string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, optionally filtered and sorted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseFilter(category, status, priority)
			if err != nil {
				return err
			}
			criteria, err := view.ParseCriteria(sortBy)
			if err != nil {
				return err
			}
			ord, err := view.ParseOrder(order)
			if err != nil {
				return err
			}

			f := newFacade()
			defer f.Close()

			ctx := cmd.Context()
			if _, err := f.Activate(ctx).Wait(ctx); err != nil {
				return fmt.Errorf("fetch tasks: %w", err)
			}
			return renderTasks(cmd.OutOrStdout(), output, f.View(filter, view.Sort{Criteria: criteria, Order: ord}))
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only tasks in this category")
	cmd.Flags().StringVar(&status, "status", "", "only tasks with this status")
	cmd.Flags().StringVar(&priority, "priority", "", "only tasks with this priority")
	cmd.Flags().StringVar(&sortBy, "sort", "none", "sort by none, createdAt, priority or status")
	cmd.Flags().StringVar(&order, "order", "asc", "sort order: asc or desc")
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func tasksGetCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFacade()
			defer f.Close()

			task, err := f.Refresh(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return renderTasks(cmd.OutOrStdout(), output, []models.Task{task})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func tasksCreateCmd() *cobra.Command {
	var (
		n      models.NewTask
		output string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFacade()
			defer f.Close()

			created, err := f.Create(cmd.Context(), n)
			if err != nil {
				return err
			}
			return renderTasks(cmd.OutOrStdout(), output, []models.Task{created})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&n.Title, "title", "", "task title")
	flags.StringVar(&n.Description, "description", "", "task description")
	flags.StringVar((*string)(&n.Category), "category", "", "one of "+joinEnum(models.Categories()))
	flags.StringVar((*string)(&n.Status), "status", string(models.StatusTodo), "one of "+joinEnum(models.Statuses()))
	flags.StringVar((*string)(&n.Priority), "priority", string(models.PriorityMedium), "one of "+joinEnum(models.Priorities()))
	flags.StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func tasksUpdateCmd() *cobra.Command {
	var (
		title, description, category, status, priority string
		output                                          string
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var changes models.TaskUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				changes.Title = &title
			}
			if flags.Changed("description") {
				changes.Description = &description
			}
			if flags.Changed("category") {
				c := models.Category(category)
				changes.Category = &c
			}
			if flags.Changed("status") {
				s := models.Status(status)
				changes.Status = &s
			}
			if flags.Changed("priority") {
				p := models.Priority(priority)
				changes.Priority = &p
			}
			if changes.IsZero() {
				return fmt.Errorf("nothing to update")
			}

			f := newFacade()
			defer f.Close()

			updated, err := f.Update(cmd.Context(), args[0], changes)
			if err != nil {
				return err
			}
			return renderTasks(cmd.OutOrStdout(), output, []models.Task{updated})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&title, "title", "", "new title")
	flags.StringVar(&description, "description", "", "new description")
	flags.StringVar(&category, "category", "", "new category")
	flags.StringVar(&status, "status", "", "new status")
	flags.StringVar(&priority, "priority", "", "new priority")
	flags.StringVarP(&output, "output", "o", "table", "output format: table, json or yaml")
	return cmd
}

func tasksDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFacade()
			defer f.Close()

			if err := f.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

func parseFilter(category, status, priority string) (view.Filter, error) {
	f := view.Filter{
		Category: models.Category(category),
		Status:   models.Status(status),
		Priority: models.Priority(priority),
	}
	if category != "" && !f.Category.Valid() {
		return view.Filter{}, fmt.Errorf("unknown category %q, want one of %s", category, joinEnum(models.Categories()))
	}
	if status != "" && !f.Status.Valid() {
		return view.Filter{}, fmt.Errorf("unknown status %q, want one of %s", status, joinEnum(models.Statuses()))
	}
	if priority != "" && !f.Priority.Valid() {
		return view.Filter{}, fmt.Errorf("unknown priority %q, want one of %s", priority, joinEnum(models.Priorities()))
	}
	return f, nil
}

func joinEnum[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func renderTasks(w io.Writer, format string, tasks []models.Task) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tasks); err != nil {
			return err
		}
		return enc.Close()
	case "table", "":
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tSTATUS\tPRIORITY\tCREATED")
		for _, t := range tasks {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				t.ID, t.Title, t.Category, t.Status, t.Priority, t.CreatedAt.Format("2006-01-02 15:04"))
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
