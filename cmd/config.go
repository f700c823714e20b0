package cmd

import (
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/minipack/minipack/internal/config"
)

func init() {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	var validate buildParams
	cfg.AddCommand(
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON schema of configuration files",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				bs, err := config.ReflectSchema()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(append(bs, '\n'))
				return err
			},
		},
		validateCommand(&validate),
	)

	RootCommand.AddCommand(cfg)
}

func validateCommand(params *buildParams) *cobra.Command {
	c := &cobra.Command{
		Use:   "validate",
		Short: "Merge and validate the configuration and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, _, err := params.load()
			if err != nil {
				return err
			}
			bs, err := yaml.Marshal(root)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(bs)
			return err
		},
	}
	params.addFlags(c.Flags())
	return c
}
