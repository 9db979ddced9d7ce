package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"spendhelm/internal/client"
)

// password returns the --password flag or, when empty, one line of input.
func (a *app) password(cmd *cobra.Command) (string, error) {
	if p, _ := cmd.Flags().GetString("password"); p != "" {
		return p, nil
	}
	fmt.Fprint(a.out, "Password: ")
	line, err := bufio.NewReader(a.in).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return "", fmt.Errorf("password is required")
	}
	return line, nil
}

func (a *app) registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			pw, err := a.password(cmd)
			if err != nil {
				return err
			}
			res, err := a.client.Register(cmd.Context(), client.RegisterInput{Email: email, Password: pw, FullName: name})
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered and logged in as %s\n", res.User.Email)
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("name", "", "full name")
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) loginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, _ := cmd.Flags().GetString("email")
			pw, err := a.password(cmd)
			if err != nil {
				return err
			}
			res, err := a.client.Login(cmd.Context(), email, pw)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Logged in as %s (token valid until %s)\n",
				res.User.Email, res.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	cmd.Flags().String("email", "", "account email")
	cmd.Flags().String("password", "", "password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (a *app) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "Logged out")
			return nil
		},
	}
}

func (a *app) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.client.Me(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return a.printJSON(p)
			}
			return a.printProfile(p)
		},
	}
}
