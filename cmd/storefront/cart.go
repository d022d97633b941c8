package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newCartCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the shopping cart",
	}
	cmd.AddCommand(newCartShowCmd(g), newCartAddCmd(g), newCartRemoveCmd(g))
	return cmd
}

func newCartShowCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.requireUser(); err != nil {
				return err
			}
			cart, err := svc.client.Cart(cmd.Context())
			if err != nil {
				return err
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Cart(*cart)
		},
	}
}

func newCartAddCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "add <product-id> [quantity]",
		Short: "Add a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qty := 1
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("quantity %q is not a number", args[1])
				}
				qty = n
			}

			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.requireUser(); err != nil {
				return err
			}
			cart, err := svc.client.AddToCart(cmd.Context(), args[0], qty)
			if err != nil {
				return err
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Cart(*cart)
		},
	}
}

func newCartRemoveCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <item-id>",
		Short: "Remove a line from the cart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.requireUser(); err != nil {
				return err
			}
			cart, err := svc.client.RemoveFromCart(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Cart(*cart)
		},
	}
}
