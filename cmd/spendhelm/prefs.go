package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"spendhelm/internal/client"
)

func (a *app) prefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "prefs",
		Aliases: []string{"preferences"},
		Short:   "Show or change currency and timezone",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Show preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.client.Preferences(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(p)
			}
			return a.printProfile(p)
		},
	}

	set := &cobra.Command{
		Use:   "set",
		Short: "Change preferences",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var u client.PreferencesUpdate
			if cmd.Flags().Changed("currency") {
				v, _ := cmd.Flags().GetString("currency")
				u.Currency = &v
			}
			if cmd.Flags().Changed("timezone") {
				v, _ := cmd.Flags().GetString("timezone")
				u.Timezone = &v
			}
			if u.Currency == nil && u.Timezone == nil {
				return fmt.Errorf("nothing to change: pass --currency and/or --timezone")
			}
			p, err := a.client.UpdatePreferences(cmd.Context(), u)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(p)
			}
			return a.printProfile(p)
		},
	}
	set.Flags().String("currency", "", "ISO currency code, e.g. EUR")
	set.Flags().String("timezone", "", "IANA timezone, e.g. Europe/Rome")

	passwd := &cobra.Command{
		Use:   "password",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, _ []string) error {
			current, _ := cmd.Flags().GetString("current")
			next, _ := cmd.Flags().GetString("new")
			if err := a.client.ChangePassword(cmd.Context(), current, next); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Password changed")
			return nil
		},
	}
	passwd.Flags().String("current", "", "current password")
	passwd.Flags().String("new", "", "new password")
	_ = passwd.MarkFlagRequired("current")
	_ = passwd.MarkFlagRequired("new")

	cmd.AddCommand(get, set, passwd)
	return cmd
}
