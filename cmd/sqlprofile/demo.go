package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"sql-profiler/pkg/capture"
	"sql-profiler/pkg/profile"
)

type demoAuthor struct {
	ID   uint
	Name string
}

type demoPost struct {
	ID       uint
	AuthorID uint
	Title    string
}

func demoCmd() *cobra.Command {
	var cfg analyzeConfig
	var posts int
	var via string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Profile an N+1 workload against an in-memory SQLite database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, view, err := cfg.options()
			if err != nil {
				return err
			}

			var src capture.Source
			gormConfig := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
			switch via {
			case "recorder":
			case "logger":
				buf := &capture.LogBuffer{}
				gormConfig.Logger = capture.NewTraceLogger(buf)
				src = buf
			default:
				return fmt.Errorf("unknown capture %q (want recorder or logger)", via)
			}

			db, err := openDemoDB(gormConfig, posts)
			if err != nil {
				return err
			}
			if src == nil {
				rec := capture.NewRecorder()
				if err := db.Use(rec); err != nil {
					return fmt.Errorf("failed to install recorder: %w", err)
				}
				src = rec
			}

			report, err := capture.ProfileFunc(cmd.Context(), src, opts, func(ctx context.Context) error {
				return listPosts(ctx, db, io.Discard)
			})
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), cfg, report, view, nil)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&posts, "posts", 20, "number of posts to seed")
	flags.StringVar(&via, "via", "recorder", "capture with the gorm recorder plugin or the trace logger")
	flags.StringVar(&cfg.Sort, "sort", "count", "rank groups by total or count")
	flags.StringVar(&cfg.Order, "order", "desc", "ranking direction: asc or desc")
	flags.IntVar(&cfg.Top, "top", profile.DefaultTopN, "number of groups in the top view")
	flags.BoolVar(&cfg.StripIDs, "strip-ids", true, "replace id = <number> comparisons with a placeholder")
	flags.StringVar(&cfg.View, "view", "all", "groups to print: all or top")
	flags.StringVar(&cfg.Output, "output", "text", "output format: text or json")
	flags.BoolVar(&cfg.Summary, "summary", true, "print totals before the groups (text output)")

	return cmd
}

func openDemoDB(cfg *gorm.Config, posts int) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&demoAuthor{}, &demoPost{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	authors := max(1, posts/4)
	for i := 1; i <= authors; i++ {
		if err := db.Create(&demoAuthor{Name: fmt.Sprintf("author %d", i)}).Error; err != nil {
			return nil, fmt.Errorf("failed to seed authors: %w", err)
		}
	}
	for i := 0; i < posts; i++ {
		post := demoPost{AuthorID: uint(i%authors + 1), Title: fmt.Sprintf("post %d", i+1)}
		if err := db.Create(&post).Error; err != nil {
			return nil, fmt.Errorf("failed to seed posts: %w", err)
		}
	}
	return db, nil
}

// listPosts loads the author of every post one query at a time.
func listPosts(ctx context.Context, db *gorm.DB, w io.Writer) error {
	var posts []demoPost
	if err := db.WithContext(ctx).Order("id").Find(&posts).Error; err != nil {
		return err
	}
	for _, p := range posts {
		var a demoAuthor
		if err := db.WithContext(ctx).First(&a, p.AuthorID).Error; err != nil {
			return err
		}
		fmt.Fprintf(w, "%s by %s\n", p.Title, a.Name)
	}
	return nil
}
