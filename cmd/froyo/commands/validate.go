package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/openfroyo/actiontracker/pkg/config"
	"github.com/openfroyo/actiontracker/pkg/policy"
	"github.com/openfroyo/actiontracker/pkg/providers"
)

func newValidateCommand() *cobra.Command {
	var policies []string

	cmd := &cobra.Command{
		Use:   "validate <declaration>...",
		Short: "Validate declaration files",
		Long: `Validate declaration files without converging them.

This command checks:
  - YAML, JSON or CUE syntax
  - Schema conformance (required fields, resource type and action names)
  - That every resource type has a provider and every action is supported
  - Built-in and --policy Rego policies`,
		Example: `  # Validate a declaration
  froyo validate site.yaml

  # Validate several at once
  froyo validate base.cue web.yaml

  # Check site policies too
  froyo validate site.yaml --policy ./policies`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadRunConfig()
			if err != nil {
				return err
			}
			paths := append(cfg.PolicyPaths, policies...)

			out := cmd.OutOrStdout()
			loader := config.NewLoader()
			registry := providers.Default(zerolog.Nop())

			failed := 0
			for _, path := range args {
				decl, err := loader.LoadDeclaration(path)
				if err == nil {
					err = registry.Validate(decl.Build())
				}
				if err == nil {
					err = checkPolicies(cmd.Context(), zerolog.Nop(), registry, paths,
						policy.Context{Node: cfg.Node}, decl.Build())
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "%s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "%s: ok (%d resources)\n", path, decl.Count())
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d declarations invalid", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&policies, "policy", nil, "Rego policy file or directory to check")

	return cmd
}
