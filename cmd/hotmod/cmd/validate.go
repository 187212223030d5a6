package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/hotmod"
)

// NewValidateCommand checks module manifests without serving them
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>...",
		Short: "Validate module manifests",
		Long: `Validate parses each manifest, checks its shape and builds its handlers,
then prints the module name, version and declared routes.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := hotmod.NewFileLoader()
			out := cmd.OutOrStdout()
			var errs []error
			for _, path := range args {
				m, err := loader.ReadManifest(path)
				if err == nil {
					_, err = loader.Load(cmd.Context(), path)
				}
				if err != nil {
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(out, "OK   %s: %s@%s\n", path, m.Name, m.Version)
				if m.Factory != "" {
					fmt.Fprintf(out, "       factory %s\n", m.Factory)
				}
				for _, r := range m.Routes {
					fmt.Fprintf(out, "       %-6s %-30s %s\n", r.Method, r.Path, r.ID)
				}
			}
			if len(errs) > 0 {
				return fmt.Errorf("%d of %d manifests invalid: %w", len(errs), len(args), errors.Join(errs...))
			}
			return nil
		},
	}
}
