package cmd

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/visa-checker/internal/config"
	"github.com/example/visa-checker/internal/db"
	"github.com/example/visa-checker/internal/store"
)

func newDatesCmd() *cobra.Command {
	var cityID string

	c := &cobra.Command{
		Use:   "dates",
		Short: "Print the last known available dates per city",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			ctx := context.Background()
			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := store.New(d)
			for _, c := range cfg.Cities {
				if cityID != "" && c.ID != cityID {
					continue
				}
				known, err := repo.LastKnownDates(ctx, c.ID)
				if err != nil {
					return err
				}
				dates := make([]string, 0, len(known))
				for dt := range known {
					dates = append(dates, dt)
				}
				sort.Strings(dates)
				fmt.Fprintf(os.Stdout, "%-12s id=%s dates=%s\n", c.Name, c.ID, strings.Join(dates, ","))
			}
			return nil
		},
	}

	c.Flags().StringVar(&cityID, "city", "", "only this city id")
	return c
}
