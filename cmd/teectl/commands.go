package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ze-codes/tee-time-scraper/app"
	"github.com/ze-codes/tee-time-scraper/config"
	"github.com/ze-codes/tee-time-scraper/db"
	applog "github.com/ze-codes/tee-time-scraper/logger"
	"github.com/ze-codes/tee-time-scraper/models"
	"github.com/ze-codes/tee-time-scraper/pipeline"
	"github.com/ze-codes/tee-time-scraper/tz"
)

var flagVerbose bool

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "teectl",
		Short:         "Administer the tee-time scraper",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&flagVerbose, "verbose", false, "Enable debug logging")

	cmd.AddCommand(newInitDBCmd(), newCoursesCmd(), newScrapeCmd(), newExpireCmd())
	return cmd
}

// withApp loads config, builds the application and runs fn with a context
// cancelled on interrupt.
func withApp(fn func(ctx context.Context, a *app.App) error) error {
	cfg := config.Load()
	log, err := applog.NewCLI(flagVerbose || cfg.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func newInitDBCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Create tables and seed courses from the source registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				courses, err := a.Store.Courses(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "database ready, %d courses\n", len(courses))
				return nil
			})
		},
	}
}

func newCoursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List or edit courses",
	}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				courses, err := a.Store.Courses(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), courses)
				}
				return printCourses(cmd.OutOrStdout(), courses)
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "Print JSON")

	cmd.AddCommand(list, newCourseSetCmd())
	return cmd
}

func newCourseSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set NAME",
		Short: "Create a course or update its location, timezone and minimum party size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			update, err := courseUpdate(cmd)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(args[0])
			return withApp(func(ctx context.Context, a *app.App) error {
				c, err := a.Store.UpdateCourse(ctx, name, update)
				if err != nil {
					return err
				}
				a.Log.Info("course updated", zap.String("course", c.Name), zap.Int64("id", c.ID))
				return printCourses(cmd.OutOrStdout(), []models.Course{*c})
			})
		},
	}
	cmd.Flags().Float64("lat", 0, "Latitude")
	cmd.Flags().Float64("lon", 0, "Longitude")
	cmd.Flags().String("timezone", "", "IANA timezone, e.g. America/Vancouver")
	cmd.Flags().Int("min-size", 0, "Smallest party the course accepts")
	return cmd
}

// courseUpdate builds an update from the flags that were actually given.
func courseUpdate(cmd *cobra.Command) (db.CourseUpdate, error) {
	var u db.CourseUpdate
	f := cmd.Flags()

	if f.Changed("lat") {
		v, _ := f.GetFloat64("lat")
		if v < -90 || v > 90 {
			return u, fmt.Errorf("--lat must be between -90 and 90")
		}
		u.Latitude = &v
	}
	if f.Changed("lon") {
		v, _ := f.GetFloat64("lon")
		if v < -180 || v > 180 {
			return u, fmt.Errorf("--lon must be between -180 and 180")
		}
		u.Longitude = &v
	}
	if f.Changed("timezone") {
		v, _ := f.GetString("timezone")
		if _, err := tz.Load(v); err != nil || strings.TrimSpace(v) == "" {
			return u, fmt.Errorf("--timezone: unknown zone %q", v)
		}
		u.Timezone = &v
	}
	if f.Changed("min-size") {
		v, _ := f.GetInt("min-size")
		if v < 1 {
			return u, fmt.Errorf("--min-size must be at least 1")
		}
		u.MinBookingSize = &v
	}
	return u, nil
}

func newScrapeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scrape [SOURCE]",
		Short: "Scrape one source (or all) and reconcile now",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := pipeline.AllSources
			if len(args) == 1 {
				name = args[0]
			}
			return withApp(func(ctx context.Context, a *app.App) error {
				rep, err := a.Runner.Run(ctx, name)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), rep); err != nil {
					return err
				}
				return rep.Result.Err()
			})
		},
	}
}

func newExpireCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Close every open tee time that has already started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.App) error {
				res, err := a.Runner.Expire(ctx)
				if err != nil {
					return err
				}
				if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				return res.Err()
			})
		},
	}
}

func printCourses(w io.Writer, courses []models.Course) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTIMEZONE\tMIN SIZE\tLAT\tLON")
	for _, c := range courses {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", c.ID, c.Name, c.Zone(), c.MinSize(), coord(c.Latitude), coord(c.Longitude))
	}
	return tw.Flush()
}

func coord(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *v)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
