package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/lattice/internal/render"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <project-id> [file]",
	Short: "Create or replace a project from HTML or JSON",
	Long: `Reads an HTML page or fragment (or a JSON document with --json) and stores it
as the document of the project. Reads stdin when no file is given.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		asJSON, _ := cmd.Flags().GetBool("json")

		var in io.Reader = cmd.InOrStdin()
		if len(args) == 2 && args[1] != "-" {
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}

		var (
			tree *domain.Tree
			err  error
		)
		if asJSON {
			var data []byte
			if data, err = io.ReadAll(in); err == nil {
				tree, err = domain.ParseTree(data)
			}
		} else {
			tree, err = render.Import(in, nil)
		}
		if err != nil {
			return fmt.Errorf("failed to read document: %w", err)
		}
		if err := tree.Validate(); err != nil {
			return err
		}

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		studio, err := a.studio()
		if err != nil {
			_ = a.Close()
			return err
		}
		ctx := context.Background()
		defer shutdown(ctx, studio, a)

		if err := studio.Put(ctx, args[0], name, tree); err != nil {
			return fmt.Errorf("failed to store project: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d nodes into '%s'\n", tree.Len(), args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("name", "", "Project name (kept when empty)")
	importCmd.Flags().Bool("json", false, "Input is a JSON document instead of HTML")
}
