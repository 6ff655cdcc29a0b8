package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	appconfig "github.com/quantfold/dealdesk/config"
	srv "github.com/quantfold/dealdesk/internal/server"
)

func main() {
	root := &cobra.Command{Use: "dealdesk"}
	root.AddCommand(serveCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.LoadConfig(cfgPath)
			return srv.Run(cfg)
		},
	}
	serve.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")
	return serve
}

func migrateCMD() *cobra.Command {
	var cfgPath, dir, direction string
	var steps int
	mig := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appconfig.LoadConfig(cfgPath)
			dsn, err := cfg.Databases.Postgres.DSN()
			if err != nil {
				return err
			}
			return srv.Migrate(dir, dsn, direction, steps)
		},
	}
	mig.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is ./config)")
	mig.Flags().StringVar(&dir, "dir", "file://migrations", "migrations source")
	mig.Flags().StringVar(&direction, "direction", "up", "up or down")
	mig.Flags().IntVar(&steps, "steps", 0, "number of steps (0 = all)")
	return mig
}
