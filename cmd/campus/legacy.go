package main

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var importLegacyCmd = &cobra.Command{ //nolint:gochecknoglobals // cobra command tree
	Use:   "import-legacy <institute-id>",
	Short: "Copy an institute's legacy student table into the shared students table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		tenantID, err := uuid.Parse(args[0])
		if err != nil {
			return errors.New("import-legacy: institute id must be a UUID")
		}

		cfg, err := setup()
		if err != nil {
			return err
		}

		store, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.Tenants().GetByID(ctx, tenantID); err != nil {
			return fmt.Errorf("import-legacy: %w", err)
		}

		n, err := store.Legacy().ImportStudents(ctx, tenantID)
		if err != nil {
			return err
		}

		log.Info().Str("institute_id", tenantID.String()).Int64("imported", n).Msg("legacy students imported")
		return nil
	},
}
