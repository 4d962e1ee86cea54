// Copyright (c) 2026 Conduit Framework Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package main

import (
	"context"
	"embed"
	"log/slog"
	"os"

	"github.com/conduitframework/conduit"
	"github.com/conduitframework/conduit/appbuilder"
	"github.com/conduitframework/conduit/config"
	"github.com/conduitframework/conduit/example/echo/app"

	"github.com/spf13/cobra"
)

//go:embed config.yaml
var configDir embed.FS

func newCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "echo",
		Short:         "Echo service built on the conduit dispatch engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srcs := []config.Source{
				config.FromYaml(
					config.NewFileReader(configDir, "config.yaml"),
				),
			}
			if configPath != "" {
				f, err := os.Open(configPath)
				if err != nil {
					return err
				}
				srcs = append(srcs, config.FromYaml(f))
			}

			return conduit.Run(
				cmd.Context(),
				appbuilder.Recover(
					appbuilder.OTel(
						conduit.AppBuilderFunc[app.Config](app.Init),
					),
				),
				srcs...,
			)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML file layered over the embedded config")
	return cmd
}

func main() {
	err := newCommand().ExecuteContext(context.Background())
	if err != nil {
		slog.Default().Error("failed to run", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
