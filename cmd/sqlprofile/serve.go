package main

import (
	"os"

	"github.com/spf13/cobra"

	"sql-profiler/pkg/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the profiler over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				if env := os.Getenv("SQLPROFILE_ADDR"); env != "" {
					addr = env
				}
			}
			return server.New().ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", server.DefaultAddr, "listen address (also SQLPROFILE_ADDR)")

	return cmd
}
