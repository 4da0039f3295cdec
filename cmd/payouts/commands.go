package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"livraison-be/internal/order"
	"livraison-be/internal/statement"
	"livraison-be/internal/utils"

	"github.com/spf13/cobra"
)

const dateLayout = "2006-01-02"

type bootFunc func(ctx context.Context) (*app, func(), error)

type periodFlags struct {
	from       string
	to         string
	restaurant string
	unpaid     bool
}

// filter turns the flags into a half-open range; --to is inclusive.
func (p periodFlags) filter() (order.SettlementFilter, error) {
	from, err := time.Parse(dateLayout, p.from)
	if err != nil {
		return order.SettlementFilter{}, fmt.Errorf("invalid --from %q, expected YYYY-MM-DD", p.from)
	}
	to, err := time.Parse(dateLayout, p.to)
	if err != nil {
		return order.SettlementFilter{}, fmt.Errorf("invalid --to %q, expected YYYY-MM-DD", p.to)
	}
	if to.Before(from) {
		return order.SettlementFilter{}, errors.New("--to must not be before --from")
	}

	return order.SettlementFilter{
		RestaurantID: p.restaurant,
		From:         from,
		To:           to.AddDate(0, 0, 1),
		UnpaidOnly:   p.unpaid,
	}, nil
}

func newRootCmd(boot bootFunc) *cobra.Command {
	var flags periodFlags

	root := &cobra.Command{
		Use:           "payouts",
		Short:         "Restaurant payout statements and settlement",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.from, "from", "", "first day of the period (YYYY-MM-DD)")
	pf.StringVar(&flags.to, "to", "", "last day of the period, inclusive (YYYY-MM-DD)")
	pf.StringVar(&flags.restaurant, "restaurant", "", "restrict to one restaurant id")
	pf.BoolVar(&flags.unpaid, "unpaid", false, "only orders not yet paid out")
	_ = root.MarkPersistentFlagRequired("from")
	_ = root.MarkPersistentFlagRequired("to")

	// withApp parses the period and boots the app before running fn.
	withApp := func(fn func(cmd *cobra.Command, a *app, f order.SettlementFilter) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			f, err := flags.filter()
			if err != nil {
				return err
			}
			a, cleanup, err := boot(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			return fn(cmd, a, f)
		}
	}

	root.AddCommand(&cobra.Command{
		Use:   "report",
		Short: "Print commission and payout totals per restaurant",
		RunE: withApp(func(cmd *cobra.Command, a *app, f order.SettlementFilter) error {
			lines, err := statement.NewService(a.orders, a.disk).Report(cmd.Context(), f)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(tw, "RESTAURANT\tORDERS\tGROSS\tCOMMISSION\tPAYOUT\tUNPAID\t")
			for _, l := range lines {
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t\n",
					l.RestaurantName, l.Orders,
					utils.FormatEUR(l.Gross), utils.FormatEUR(l.Commission),
					utils.FormatEUR(l.Payout), utils.FormatEUR(l.Unpaid),
				)
			}
			return tw.Flush()
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "export",
		Short: "Write a CSV statement to the configured storage disk",
		RunE: withApp(func(cmd *cobra.Command, a *app, f order.SettlementFilter) error {
			url, err := statement.NewService(a.orders, a.disk).Export(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		}),
	})

	root.AddCommand(&cobra.Command{
		Use:   "mark-paid",
		Short: "Flag a restaurant's delivered orders in the period as paid out",
		RunE: withApp(func(cmd *cobra.Command, a *app, f order.SettlementFilter) error {
			if f.RestaurantID == "" {
				return errors.New("mark-paid requires --restaurant")
			}
			n, err := a.orders.MarkRestaurantPaidBetween(cmd.Context(), f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d orders marked as paid\n", n)
			return nil
		}),
	})

	return root
}
