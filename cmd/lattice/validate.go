package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file.json]...",
	Short: "Check documents for structural errors",
	Long: `Parses each JSON document and checks it for duplicate ids, broken parent
references and invalid tags. Without arguments every stored project is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		var errs []error
		check := func(name string, data []byte) {
			tree, err := domain.ParseTree(data)
			if err == nil {
				err = tree.Validate()
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				fmt.Fprintf(out, "✗ %s: %v\n", name, err)
				return
			}
			fmt.Fprintf(out, "✓ %s (%d nodes)\n", name, tree.Len())
		}

		if len(args) > 0 {
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				check(path, data)
			}
			return errors.Join(errs...)
		}

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		ids, err := a.store.List(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list projects: %w", err)
		}
		for _, id := range ids {
			project, err := a.store.Load(cmd.Context(), id)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", id, err))
				continue
			}
			if len(project.Tree) == 0 {
				fmt.Fprintf(out, "✓ %s (empty)\n", id)
				continue
			}
			check(id, project.Tree)
		}
		return errors.Join(errs...)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
