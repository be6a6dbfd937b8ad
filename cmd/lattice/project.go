package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/internal/presentation/tui"
	"github.com/aretw0/lattice/internal/render"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects"},
	Short:   "Manage stored projects",
	Long:    `List, inspect, export and remove projects in the configured store.`,
}

var projectLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List all stored projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(ids) == 0 {
			fmt.Fprintln(out, "No projects found.")
			return nil
		}
		fmt.Fprintln(out, "Projects:")
		for _, id := range ids {
			fmt.Fprintln(out, "- "+id)
		}
		return nil
	},
}

var projectInspectCmd = &cobra.Command{
	Use:   "inspect <project-id>",
	Short: "Show the outline of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		project, tree, err := loadDocument(cmd, args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if raw, _ := cmd.Flags().GetBool("json"); raw {
			// Pretty print JSON
			data, err := json.MarshalIndent(project, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal project: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		title := project.Name
		if title == "" {
			title = project.ID
		}
		rendered, err := tui.NewRenderer()(tui.Outline(title, tree))
		if err != nil {
			return err
		}
		fmt.Fprint(out, rendered)
		fmt.Fprintf(out, "revision %d, updated %s\n", project.Revision, project.UpdatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var projectTreeCmd = &cobra.Command{
	Use:   "tree <project-id>",
	Short: "Export the document tree as a Mermaid diagram",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, tree, err := loadDocument(cmd, args[0])
		if err != nil {
			return err
		}
		var overlay *graph.Overlay
		if sel := tree.Selected(); sel != nil {
			overlay = &graph.Overlay{Selected: sel.ID}
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(tree, overlay))
		return nil
	},
}

var projectExportCmd = &cobra.Command{
	Use:   "export <project-id>",
	Short: "Render a project as HTML, Markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("out")

		project, tree, err := loadDocument(cmd, args[0])
		if err != nil {
			return err
		}

		var content string
		switch format {
		case "html":
			content, err = render.Page(tree, project.Name)
		case "markdown", "md":
			content, err = render.Markdown(tree)
		case "json":
			var data []byte
			data, err = json.MarshalIndent(tree, "", "  ")
			content = string(data) + "\n"
		default:
			return fmt.Errorf("unsupported format %q (html, markdown, json)", format)
		}
		if err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if output == "" || output == "-" {
			fmt.Fprint(cmd.OutOrStdout(), content)
			return nil
		}
		if err := os.WriteFile(output, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", output, err)
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Exported '%s' to %s\n", project.ID, output)
		return nil
	},
}

var projectRmCmd = &cobra.Command{
	Use:   "rm <project-id>...",
	Short: "Remove one or more projects",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var errs []error
		for _, id := range args {
			if err := a.store.Delete(cmd.Context(), id); err != nil {
				errs = append(errs, fmt.Errorf("remove '%s': %w", id, err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed project '%s'\n", id)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(projectCmd)
	projectCmd.AddCommand(projectLsCmd, projectInspectCmd, projectTreeCmd, projectExportCmd, projectRmCmd)

	projectInspectCmd.Flags().Bool("json", false, "Print the stored record as JSON")
	projectExportCmd.Flags().StringP("format", "f", "html", "Output format: html, markdown or json")
	projectExportCmd.Flags().StringP("out", "o", "", "Output file (default stdout)")
}

// loadDocument reads one project straight from the store.
func loadDocument(cmd *cobra.Command, id string) (*domain.Project, *domain.Tree, error) {
	a, err := loadApp(cmd)
	if err != nil {
		return nil, nil, err
	}
	defer a.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	project, err := a.store.Load(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load project '%s': %w", id, err)
	}
	tree, err := project.Document()
	if err != nil {
		return nil, nil, fmt.Errorf("project '%s' holds an invalid document: %w", id, err)
	}
	return project, tree, nil
}
