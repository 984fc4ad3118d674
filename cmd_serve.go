package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	detectors "github.com/hannes/kiji-autolabel/pii/detectors"
	"github.com/hannes/kiji-autolabel/server"
)

var (
	servePort       string
	serveNoValidate bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the alignment engine over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := commandConfig()
		if servePort != "" {
			c.Server.Port = servePort
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		var validator *detectors.Validator
		if !serveNoValidate {
			validator = detectors.DefaultValidator()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.NewServer(c.Server, c.Canonicalizer(), validator, commandLogger())
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Listen address in the form :PORT (default from config)")
	serveCmd.Flags().BoolVar(&serveNoValidate, "no-validate", false, "Skip format findings in /api/align responses")
}
