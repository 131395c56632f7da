package main

import (
	"context"
	"fmt"
	"os"
	"path"

	"github.com/spf13/cobra"
	"github.com/tobsdb/tobsql"
	"github.com/tobsdb/tobsql/internal/config"
	"github.com/tobsdb/tobsql/internal/conn"
)

var (
	schema_path string
	config_path string
	persist     bool
)

var rootCmd = &cobra.Command{
	Use:   "tdb",
	Short: "TobSQL interactive shell",
	Long: `Opens the schema in an in-memory TobSQL database and reads queries.
Each line is either a JSON request like
  {"action":"execute","table":"users","query":[{"type":"select"}]}
or a history command: <, >, ?, flush_history, flush_db.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := open(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()
		return runShell(cmd.Context(), db)
	},
}

func init() {
	cwd, _ := os.Getwd()

	rootCmd.PersistentFlags().StringVarP(&schema_path, "schema", "s", path.Join(cwd, "schema.tdb"), "path to the schema file")
	rootCmd.PersistentFlags().StringVarP(&config_path, "config", "c", "", "path to a config file (yaml, json or toml)")
	rootCmd.PersistentFlags().BoolVarP(&persist, "persist", "p", false, "mirror rows to the config's data path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer newline delimited JSON requests from stdin on stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()
			return conn.Serve(cmd.Context(), db, os.Stdin, os.Stdout)
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate [schema]",
		Short: "Check a schema file for errors",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				schema_path = args[0]
			}
			fmt.Printf("Checking %s for errors\n", schema_path)
			schema_data, err := os.ReadFile(schema_path)
			if err != nil {
				return err
			}
			if _, err := tobsql.ParseSchema(string(schema_data)); err != nil {
				return fmt.Errorf("invalid schema: %w", err)
			}
			fmt.Println("Schema checks successful: Schema is valid")
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, validateCmd)
}

func open(ctx context.Context) (*tobsql.DB, error) {
	cfg, err := config.Load(config_path)
	if err != nil {
		return nil, err
	}
	if persist {
		cfg.Persistent = true
	}

	schema_data, err := os.ReadFile(schema_path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}
	return tobsql.ConnectSchema(ctx, string(schema_data), cfg)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
