package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Load pages and revisions into the version store",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return errors.New("import file is required")
			}

			conf, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := conf.Validate(); err != nil {
				return err
			}

			f, err := loadImportFile(args[0])
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
			if store.writer == nil {
				return fmt.Errorf("store %q is read-only", conf.Store.Backend)
			}

			n, err := f.apply(cmd.Context(), store.writer)
			if err != nil {
				return err
			}
			cmd.Printf("imported %d pages, %d revisions\n", len(f.Pages), n)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newImportCmd())
}
