package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/canteen/core/cart"
	"github.com/trezcool/canteen/core/menu"
	"github.com/trezcool/canteen/core/order"
)

var readPasswordFunc = term.ReadPassword // mockable

// lineFlags identify a cart line: the item plus its instructions and customizations.
type lineFlags struct {
	note           string
	customizations []string
}

func (lf *lineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.note, "note", "", "special instructions for the kitchen")
	cmd.Flags().StringArrayVarP(&lf.customizations, "custom", "c", nil, "a customization (repeatable, order matters)")
}

func (lf *lineFlags) key(itemID string) cart.Key {
	return cart.NewKey(itemID, lf.note, lf.customizations...)
}

func newRootCmd(k *kiosk) *cobra.Command {
	root := &cobra.Command{
		Use:           "kiosk",
		Short:         "Canteen self-service kiosk",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			k.start(cmd.Context())
		},
	}
	root.AddCommand(
		newMenuCmd(k),
		newAddCmd(k),
		newUpdateCmd(k),
		newRemoveCmd(k),
		newClearCmd(k),
		newCartCmd(k),
		newSignInCmd(k),
		newSignOutCmd(k),
		newWhoAmICmd(k),
		newCheckoutCmd(k),
		newOrdersCmd(k),
	)
	return root
}

func newMenuCmd(k *kiosk) *cobra.Command {
	var f menu.Filter
	cmd := &cobra.Command{
		Use:   "menu",
		Short: "List the menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return k.listMenu(cmd.Context(), cmd.OutOrStdout(), f)
		},
	}
	cmd.Flags().StringVarP(&f.Search, "search", "s", "", "match on name or description")
	cmd.Flags().StringVar(&f.CategoryID, "category", "", "category ID")
	cmd.Flags().BoolVar(&f.VegetarianOnly, "vegetarian", false, "vegetarian items only")
	cmd.Flags().BoolVar(&f.AvailableOnly, "available", false, "available items only")
	cmd.Flags().StringVar(&f.Sort, "sort", "", "name, price, -name or -price")
	return cmd
}

func newAddCmd(k *kiosk) *cobra.Command {
	var lf lineFlags
	var qty int
	cmd := &cobra.Command{
		Use:   "add ITEM_ID",
		Short: "Add an item to the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			li, err := k.add(cmd.Context(), args[0], qty, lf.note, lf.customizations)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %d x %s. ", li.Quantity, li.Name)
			printSummary(cmd, k)
			return nil
		},
	}
	cmd.Flags().IntVarP(&qty, "quantity", "q", 1, "number of units")
	lf.register(cmd)
	return cmd
}

func newUpdateCmd(k *kiosk) *cobra.Command {
	var lf lineFlags
	var delta int
	cmd := &cobra.Command{
		Use:   "update ITEM_ID",
		Short: "Change the quantity of a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := k.updateQuantity(cmd.Context(), lf.key(args[0]), delta); err != nil {
				return err
			}
			printSummary(cmd, k)
			return nil
		},
	}
	cmd.Flags().IntVarP(&delta, "delta", "d", 0, "units to add (negative to take away)")
	_ = cmd.MarkFlagRequired("delta")
	lf.register(cmd)
	return cmd
}

func newRemoveCmd(k *kiosk) *cobra.Command {
	var lf lineFlags
	cmd := &cobra.Command{
		Use:   "remove ITEM_ID",
		Short: "Remove a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := k.remove(cmd.Context(), lf.key(args[0])); err != nil {
				return err
			}
			printSummary(cmd, k)
			return nil
		},
	}
	lf.register(cmd)
	return cmd
}

func newClearCmd(k *kiosk) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := k.clear(cmd.Context()); err != nil {
				return err
			}
			printSummary(cmd, k)
			return nil
		},
	}
}

func newCartCmd(k *kiosk) *cobra.Command {
	return &cobra.Command{
		Use:   "cart",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			k.printCart(cmd.OutOrStdout())
		},
	}
}

func newSignInCmd(k *kiosk) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in; the cart of this kiosk is merged into your account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprint(cmd.OutOrStdout(), "Enter password:")
			pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
			fmt.Fprintln(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			sess, err := k.signIn(cmd.Context(), email, string(pwd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s <%s>. ", sess.User.Name, sess.User.Email)
			printSummary(cmd, k)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignOutCmd(k *kiosk) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "Sign out of this kiosk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := k.signOut(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}

func newWhoAmICmd(k *kiosk) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed in account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			usr, err := k.currentUser()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s <%s> (%s)\n", usr.Name, usr.Email, usr.Role)
			return nil
		},
	}
}

func newCheckoutCmd(k *kiosk) *cobra.Command {
	var cr order.CheckoutRequest
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Place an order with the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := k.checkout(cmd.Context(), cr)
			if err != nil {
				return err
			}
			k.receipt.Order(cmd.OutOrStdout(), o)
			return nil
		},
	}
	cmd.Flags().StringVarP(&cr.PaymentMethod, "payment", "p", "cash", "cash, card or mobile_money")
	cmd.Flags().StringVar(&cr.PickupTime, "pickup", "", "pickup time, e.g. 12:30")
	cmd.Flags().StringVar(&cr.SpecialInstructions, "note", "", "instructions for the whole order")
	_ = cmd.MarkFlagRequired("pickup")
	return cmd
}

func newOrdersCmd(k *kiosk) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List your orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			orders, err := k.history(cmd.Context())
			if err != nil {
				return err
			}
			k.receipt.History(cmd.OutOrStdout(), orders)
			return nil
		},
	}
}

func printSummary(cmd *cobra.Command, k *kiosk) {
	fmt.Fprintf(
		cmd.OutOrStdout(), "Cart: %d item(s), total %s\n",
		k.engine.Count(), k.receipt.money(k.engine.Totals().Total),
	)
}
