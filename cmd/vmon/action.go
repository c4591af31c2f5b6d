package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Zuo-Peng/vmon/internal/api"
)

func actionCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:       "action <sessionId> <vip|coupon|email>",
		Short:     "Trigger a marketing action for a session",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(api.ActionVIP), string(api.ActionCoupon), string(api.ActionEmail)},
		RunE: func(cmd *cobra.Command, args []string) error {
			action, err := api.ParseAction(args[1])
			if err != nil {
				return err
			}

			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := newClient(e.cfg)
			if err != nil {
				return err
			}
			res, err := client.SessionAction(e.ctx, args[0], action)
			if err != nil {
				return err
			}
			if res.Message != "" {
				fmt.Println(res.Message)
			} else {
				fmt.Printf("%s sent for %s\n", action, args[0])
			}
			return nil
		},
	}
}

func labelCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "label <visitorId> <label>",
		Short: "Set the human-readable label of a visitor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := g.setup(false)
			if err != nil {
				return err
			}
			defer e.Close()

			client, err := newClient(e.cfg)
			if err != nil {
				return err
			}
			if _, err := client.SetVisitorLabel(e.ctx, args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("visitor %s labeled %q\n", args[0], args[1])
			return nil
		},
	}
}
