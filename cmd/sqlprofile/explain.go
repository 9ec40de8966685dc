package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"sql-profiler/pkg/explain"
)

func explainCmd() *cobra.Command {
	var dbURL string
	var asJSON bool

	cmd := &cobra.Command{
		Use:     "explain <sql>",
		Short:   "Show the PostgreSQL plan of one statement",
		Example: `  sqlprofile explain "SELECT * FROM users WHERE email = 'a@example.com'"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if explain.HasPlaceholders(args[0]) {
				return fmt.Errorf("statement has bind placeholders; substitute literal values first")
			}

			e, err := explain.Open(dbURL)
			if err != nil {
				return err
			}
			defer e.Close()

			plan, err := e.Explain(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			_, err = fmt.Fprintln(out, plan.Text())
			return err
		},
	}
	cmd.Flags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default DATABASE_URL)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the plan as JSON")

	return cmd
}
