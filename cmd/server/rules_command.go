package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"intersection/server/internal/config"
	"intersection/server/internal/mapping"
)

func newRulesCommand(configFlag *string) *cobra.Command {
	var asJSON bool
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Show the mapping rules the server would load",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := rulesPath
			if path == "" {
				settings, _, err := config.Load(*configFlag)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				path = settings.Mapping.RulesPath
			}

			var (
				rules mapping.Rules
				errs  []error
			)
			if path == "" {
				rules, errs = mapping.Default()
			} else {
				rules, errs = mapping.Load(path)
			}
			stderr := cmd.ErrOrStderr()
			for _, err := range errs {
				fmt.Fprintf(stderr, "warning: %v\n", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				encoder := json.NewEncoder(out)
				encoder.SetIndent("", "  ")
				return encoder.Encode(rules.Document())
			}
			fmt.Fprintln(out, rules.Table())
			fmt.Fprintf(out, "%d rules, %d enabled\n", len(rules), rules.Enabled())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the rules document as JSON")
	cmd.Flags().StringVarP(&rulesPath, "file", "f", "", "Rules file to load instead of the configured one")
	return cmd
}

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema for mapping rule documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := mapping.SchemaJSON()
			if err != nil {
				return fmt.Errorf("render schema: %w", err)
			}
			out := cmd.OutOrStdout()
			out.Write(data)
			fmt.Fprintln(out)
			return nil
		},
	}
}
