package cmd

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"court-notifier/types"
)

func newClubCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "club",
		Short: "Manage the club and court catalog",
	}
	cmd.AddCommand(newClubAddCmd())
	cmd.AddCommand(newClubCourtCmd())
	cmd.AddCommand(newClubListCmd())
	return cmd
}

func newClubAddCmd() *cobra.Command {
	var slug, name string

	c := &cobra.Command{
		Use:   "add",
		Short: "Add or rename a club",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.pg.SaveClub(ctx, types.ClubRef{Slug: slug, Name: name}); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved club %q\n", slug)
			return nil
		},
	}

	c.Flags().StringVar(&slug, "slug", "", "kluby.org club slug, e.g. mera")
	c.Flags().StringVar(&name, "name", "", "display name")
	_ = c.MarkFlagRequired("slug")
	return c
}

func newClubCourtCmd() *cobra.Command {
	var (
		club, id, surface string
		number            int
		roofed            bool
	)

	c := &cobra.Command{
		Use:   "court",
		Short: "Add or update a court of a club",
		RunE: func(cmd *cobra.Command, args []string) error {
			sf, err := types.ParseSurface(surface)
			if err != nil {
				return err
			}

			ctx := context.Background()
			a, err := openApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.Close()

			court := types.CourtRef{ID: id, Surface: sf, Roofed: roofed, DisplayNumber: number}
			if err := a.pg.SaveCourt(ctx, club, court); err != nil {
				return err
			}
			if err := a.redis.InvalidateCourts(ctx, club); err != nil {
				a.log.Warn().Err(err).Str("club", club).Msg("⚠️ Failed to invalidate court cache")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved court %s of %q as Court %d\n", id, club, number)
			return nil
		},
	}

	c.Flags().StringVar(&club, "club", "", "club slug")
	c.Flags().StringVar(&id, "id", "", "court id as used in kluby.org reservation links")
	c.Flags().IntVar(&number, "number", 0, "number shown to users")
	c.Flags().StringVar(&surface, "surface", "", "clay or hard")
	c.Flags().BoolVar(&roofed, "roofed", false, "court is under a roof or in a hall")
	for _, f := range []string{"club", "id", "number", "surface"} {
		_ = c.MarkFlagRequired(f)
	}
	return c
}

func newClubListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List clubs and their courts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := openApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.Close()

			clubs, err := a.pg.ListClubs(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CLUB\tCOURT\tID\tSURFACE\tROOF")
			for _, club := range clubs {
				courts, err := a.catalog.ListCourts(ctx, club.Slug)
				if err != nil {
					return err
				}
				if len(courts) == 0 {
					fmt.Fprintf(w, "%s\t-\t-\t-\t-\n", club.DisplayName())
				}
				for _, ct := range courts {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", club.DisplayName(), ct.DisplayName(), ct.ID, ct.Surface, strconv.FormatBool(ct.Roofed))
				}
			}
			return w.Flush()
		},
	}
}
