package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/procvisor/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Work with process manifests",
	}
	cmd.AddCommand(newConfigLintCmd())
	return cmd
}

func newConfigLintCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "lint",
		Short: "Validate a process manifest",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := file
			if len(args) > 0 {
				path = args[0]
			}
			manifest, err := config.Load(path)
			if err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), err)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: OK (%d processes)\n", path, len(manifest.Processes))
			return nil
		},
		Args: cobra.MaximumNArgs(1),
	}
	cmd.Flags().StringVarP(&file, "file", "f", "procvisor.yaml", "Path to the process manifest")
	return cmd
}
