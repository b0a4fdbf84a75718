package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/parcels"
)

// ---------------- Shapefile import ----------------

func (a *app) importCmd() *cobra.Command {
	var (
		dryRun    bool
		overrides []string
	)
	cmd := &cobra.Command{
		Use:   "import <parcels.shp>",
		Short: "Register every parcel of a polygon shapefile (admin only)",
		Long: `Reads a parcel shapefile and registers one property per polygon from its DBF attributes.
Default fields: OWNER_NAME GOV_UID ADDR1 ADDR2 CITY STATE COUNTRY PIN COST ACCOUNT SALE_PRICE.
Use --field owner_name=OWNER to read a value from a different column.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := applyFieldOverrides(parcels.DefaultMapping(), overrides)
			if err != nil {
				return err
			}
			caller, err := a.caller()
			if err != nil && !dryRun {
				return err
			}

			layer, err := parcels.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var imported, failed int
			for _, p := range layer {
				req, err := p.Request(mapping)
				if err == nil {
					err = req.Validate()
				}
				if err != nil {
					failed++
					fmt.Fprintf(out, "row %d skipped: %v\n", p.Row, err)
					continue
				}
				if dryRun {
					imported++
					fmt.Fprintf(out, "row %d ok, %s\n", p.Row, p.Bounds())
					continue
				}
				id, err := a.svc.Register(cmd.Context(), caller, req)
				if ledger.KindOf(err) == ledger.InvalidInput {
					failed++
					fmt.Fprintf(out, "row %d skipped: %v\n", p.Row, err)
					continue
				}
				if err != nil {
					return fmt.Errorf("row %d: %w", p.Row, err)
				}
				imported++
				fmt.Fprintf(out, "row %d -> property #%d, %s\n", p.Row, id, p.Bounds())
			}

			verb := "Imported"
			if dryRun {
				verb = "Validated"
			}
			fmt.Fprintf(out, "%s %d of %d parcels (%d skipped)\n", verb, imported, len(layer), failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate rows without registering them")
	cmd.Flags().StringArrayVar(&overrides, "field", nil, "map a registration field to a DBF column, e.g. cost=APPRAISED")
	return cmd
}

// applyFieldOverrides sets mapping entries from key=COLUMN pairs.
func applyFieldOverrides(m parcels.Mapping, overrides []string) (parcels.Mapping, error) {
	targets := map[string]*string{
		"owner_name":    &m.OwnerName,
		"gov_uid":       &m.GovUID,
		"address_line1": &m.AddressLine1,
		"address_line2": &m.AddressLine2,
		"city":          &m.City,
		"state":         &m.State,
		"country":       &m.Country,
		"pin_code":      &m.PinCode,
		"cost":          &m.Cost,
		"owner_account": &m.OwnerAccount,
		"sale_price":    &m.SalePrice,
	}
	for _, o := range overrides {
		key, column, ok := strings.Cut(o, "=")
		target, known := targets[strings.ToLower(strings.TrimSpace(key))]
		if !ok || !known {
			return m, ledger.Errorf(ledger.InvalidInput, "import", "bad --field %q: want one of owner_name, gov_uid, address_line1, address_line2, city, state, country, pin_code, cost, owner_account, sale_price followed by =COLUMN", o)
		}
		*target = strings.TrimSpace(column)
	}
	return m, nil
}
