// Command coursectl runs administrative tasks directly against the
// database: creating accounts, importing courses and tailing the event log.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-courses/internal/config"
	"github.com/mind-engage/mindengage-courses/internal/course"
	"github.com/mind-engage/mindengage-courses/internal/db"
	"github.com/mind-engage/mindengage-courses/internal/logging"
	syncx "github.com/mind-engage/mindengage-courses/internal/sync"
	"github.com/mind-engage/mindengage-courses/internal/users"
)

var (
	dbDriver string
	dbDSN    string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:          "coursectl",
	Short:        "administer a course scoring database",
	SilenceUsage: true,
}

func init() {
	cfg := config.FromEnv()
	rootCmd.PersistentFlags().StringVar(&dbDriver, "db-driver", cfg.DBDriver, "database driver (sqlite|postgres)")
	rootCmd.PersistentFlags().StringVar(&dbDSN, "db-dsn", cfg.DBDSN, "database DSN")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	rootCmd.AddCommand(newAddUserCmd(), newImportCmd(), newEventsCmd())
}

func openDB(ctx context.Context) (*sql.DB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Open(ctx, db.Driver(dbDriver), dbDSN)
}

func newAddUserCmd() *cobra.Command {
	var in users.NewUser
	var role string
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "create a local account",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbh, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer dbh.Close()
			in.Role = users.Role(role)
			u, err := users.NewSQLStore(dbh, logging.New(logLevel, "text")).Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Username, u.Role, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&in.Username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&in.Password, "password", "p", "", "password")
	cmd.Flags().StringVarP(&role, "role", "r", string(users.RoleLearner), "learner|instructor|admin")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newImportCmd() *cobra.Command {
	var author string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "import a course from a JSON document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			dbh, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer dbh.Close()
			log := logging.New(logLevel, "text")
			store := course.NewSQLStore(dbh, syncx.NewEventRepo(config.FromEnv().SiteID), log, course.WithDriver(db.Driver(dbDriver)))
			c, issues, err := store.Import(cmd.Context(), raw, author)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s (%d questions, %d points) id=%s\n",
				c.Name, len(c.Questions), c.TotalPoints(), c.ID)
			for _, is := range issues {
				fmt.Fprintf(cmd.OutOrStdout(), "  warning: %s: %s\n", is.QuestionID, is.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&author, "author", "", "user id recorded as the course instructor")
	return cmd
}

func newEventsCmd() *cobra.Command {
	var (
		after int64
		limit int
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "print the event log as JSON lines",
		RunE: func(cmd *cobra.Command, args []string) error {
			dbh, err := openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer dbh.Close()
			list, err := syncx.NewEventRepo("").List(cmd.Context(), dbh, after, limit)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, e := range list {
				if err := enc.Encode(e); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&after, "after", 0, "only events with a greater sequence number")
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events (1-500)")
	return cmd
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
