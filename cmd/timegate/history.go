package main

import (
	"errors"
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nainya/timegate/pkg/memento"
	"github.com/nainya/timegate/pkg/timestamp"
	"github.com/nainya/timegate/pkg/version"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history [title]",
		Short: "Show the version history of a page",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("page title is required")
			}

			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			mconf, err := conf.ToMemento()
			if err != nil {
				return err
			}

			store, err := openStore(conf.Store)
			if err != nil {
				return err
			}
			defer func() {
				_ = store.close()
			}()

			ctx := cmd.Context()
			locator := version.NewLocator(store.catalog)
			res, err := locator.Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			if res == nil {
				return fmt.Errorf("no page titled %q", args[0])
			}

			versions, err := locator.List(ctx, *res)
			if err != nil {
				return err
			}

			uris := memento.NewURIs(mconf)
			tw := table.NewWriter()
			tw.Style().Options.DrawBorder = false
			tw.Style().Options.SeparateColumns = false
			tw.Style().Options.SeparateFooter = false
			tw.Style().Options.SeparateHeader = false
			tw.Style().Options.SeparateRows = false
			tw.AppendHeader(table.Row{
				"ID",
				"MEMENTO-DATETIME",
				"ROLE",
				"URI",
			})
			for i, v := range versions {
				tw.AppendRow(table.Row{
					v.ID,
					timestamp.Format(v.Timestamp),
					role(i, len(versions)),
					uris.Memento(res.Title, v.ID),
				})
			}
			cmd.Printf("%s\n", tw.Render())
			return nil
		},
	}
}

func role(i, n int) string {
	switch {
	case n == 1:
		return "first last"
	case i == 0:
		return "first"
	case i == n-1:
		return "last"
	default:
		return ""
	}
}

func init() {
	rootCmd.AddCommand(newHistoryCmd())
}
