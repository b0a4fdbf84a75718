package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"propertyregistry/internal/ledger"
	"propertyregistry/internal/registry"
	"propertyregistry/internal/types"
)

// parseID reads a record id argument.
func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, ledger.Errorf(ledger.InvalidInput, "args", "property id %q is not a non-negative integer", arg)
	}
	return id, nil
}

// ---------------- Admin setup ----------------

func (a *app) initCmd() *cobra.Command {
	var admin1, admin2 string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Install the initial admin pair on a fresh ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if admin1 == "" {
				admin1 = a.cfg.Admins.Admin1
			}
			if admin2 == "" {
				admin2 = a.cfg.Admins.Admin2
			}
			installed, err := a.svc.Bootstrap(cmd.Context(), types.Account(admin1), types.Account(admin2))
			if err != nil {
				return err
			}
			if !installed {
				fmt.Fprintln(cmd.OutOrStdout(), "Ledger already initialized; admins unchanged.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admins installed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&admin1, "admin1", "", "first admin (default: admins.admin1 from config)")
	cmd.Flags().StringVar(&admin2, "admin2", "", "second admin (default: admins.admin2 from config)")
	return cmd
}

func (a *app) adminsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "admins [identity]",
		Short: "Show the admin pair, or whether identity is an admin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				ok, err := a.svc.IsAdmin(cmd.Context(), types.Account(args[0]))
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s is admin: %t\n", args[0], ok)
				return nil
			}
			pair, err := a.svc.Admins(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Admin 1           : %s\n", pair.Admin1)
			fmt.Fprintf(out, "Admin 2           : %s\n", pair.Admin2)
			return nil
		},
	}
}

func (a *app) updateAdminsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update-admins <admin1> <admin2>",
		Short: "Replace both admins (either current admin may do this alone)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			if err := a.svc.UpdateAdmins(cmd.Context(), caller, types.Account(args[0]), types.Account(args[1])); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admins updated.")
			return nil
		},
	}
}

// ---------------- Records ----------------

func (a *app) registerCmd() *cobra.Command {
	var (
		req     registry.RegisterRequest
		account string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new property (admin only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			req.OwnerAccount = types.Account(account)
			id, err := a.svc.Register(cmd.Context(), caller, req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered property #%d\n", id)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.OwnerName, "owner-name", "", "owner name")
	f.StringVar(&req.GovUID, "gov-uid", "", "owner government id")
	f.StringVar(&account, "owner-account", "", "owner account")
	f.StringVar(&req.AddressLine1, "addr1", "", "address line 1")
	f.StringVar(&req.AddressLine2, "addr2", "", "address line 2")
	f.StringVar(&req.City, "city", "", "city")
	f.StringVar(&req.State, "state", "", "state")
	f.StringVar(&req.Country, "country", "", "country")
	f.StringVar(&req.PinCode, "pin", "", "postal code")
	f.Int64Var(&req.Cost, "cost", 0, "cost in the smallest currency unit")
	f.Int64Var(&req.SalePrice, "sale-price", 0, "asking price to store for a later listing")
	for _, name := range []string{"owner-name", "gov-uid", "owner-account", "addr1", "city", "state", "country", "pin", "cost"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var withHistory bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			p, err := a.svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			renderProperty(out, p)
			if withHistory {
				entries, err := a.svc.History(cmd.Context(), id)
				if err != nil {
					return err
				}
				renderHistory(out, entries)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withHistory, "history", false, "also print the record's journal")
	return cmd
}

func (a *app) listCmd() *cobra.Command {
	var offset, limit uint64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			props, err := a.svc.List(cmd.Context(), offset, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(props) == 0 {
				fmt.Fprintln(out, "No properties")
				return nil
			}
			for _, p := range props {
				fmt.Fprintln(out, formatLine(out, p))
			}
			total, err := a.svc.Count(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "(%d of %d records)\n", len(props), total)
			return nil
		},
	}
	cmd.Flags().Uint64Var(&offset, "offset", 0, "first id to list")
	cmd.Flags().Uint64Var(&limit, "limit", 50, "maximum rows; 0 lists everything")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <id>",
		Short: "Show the journal of one property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			entries, err := a.svc.History(cmd.Context(), id)
			if err != nil {
				return err
			}
			renderHistory(cmd.OutOrStdout(), entries)
			return nil
		},
	}
}

// ---------------- Market ----------------

func (a *app) sellCmd() *cobra.Command {
	var (
		price int64
		off   bool
	)
	cmd := &cobra.Command{
		Use:   "sell <id>",
		Short: "List (or with --off, delist) a property you own",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var newPrice *int64
			if cmd.Flags().Changed("price") {
				newPrice = registry.Price(price)
			}
			if err := a.svc.SetSellableAndUpdatePrice(cmd.Context(), caller, id, !off, newPrice); err != nil {
				return err
			}
			p, err := a.svc.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Property #%d: %s\n", id, status(out, p))
			return nil
		},
	}
	cmd.Flags().Int64Var(&price, "price", 0, "new asking price; omit or 0 to keep the current one")
	cmd.Flags().BoolVar(&off, "off", false, "take the property off the market")
	return cmd
}

func (a *app) buyCmd() *cobra.Command {
	var (
		req     registry.BuyRequest
		account string
	)
	cmd := &cobra.Command{
		Use:   "buy <id>",
		Short: "Buy a listed property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			if req.ID, err = parseID(args[0]); err != nil {
				return err
			}
			req.NewOwnerAccount = types.Account(account)
			if err := a.svc.Buy(cmd.Context(), caller, req); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bought property #%d for %s\n", req.ID, req.NewOwnerName)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.NewOwnerName, "name", "", "new owner name")
	f.StringVar(&req.NewGovUID, "gov-uid", "", "new owner government id")
	f.StringVar(&account, "account", "", "new owner account")
	f.Int64Var(&req.Payment, "pay", 0, "amount paid; anything above the price is refunded to the caller")
	for _, name := range []string{"name", "gov-uid", "account", "pay"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (a *app) splitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <id> <percentage>",
		Short: "Split a property into two successors (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			caller, err := a.caller()
			if err != nil {
				return err
			}
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			pct, err := strconv.Atoi(args[1])
			if err != nil {
				return ledger.Errorf(ledger.InvalidInput, "args", "percentage %q is not an integer", args[1])
			}
			idA, idB, err := a.svc.Split(cmd.Context(), caller, id, pct)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Split property #%d into #%d and #%d\n", id, idA, idB)
			return nil
		},
	}
}

func (a *app) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance [account]",
		Short: "Show proceeds and refunds credited to an account (default: the caller)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var account types.Account
			if len(args) == 1 {
				account = types.Account(args[0])
			} else {
				var err error
				if account, err = a.caller(); err != nil {
					return err
				}
			}
			bal, err := a.svc.Balance(cmd.Context(), account)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", account, bal)
			return nil
		},
	}
}
