package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"spendhelm/internal/client"
)

// app carries what every subcommand needs. Each root command gets its own
// viper instance so commands can be built and run repeatedly in tests.
type app struct {
	v      *viper.Viper
	out    io.Writer
	in     io.Reader
	client *client.Client
	tokens *client.FileTokenStore
}

func newRootCmd(out io.Writer, in io.Reader) *cobra.Command {
	a := &app{v: viper.New(), out: out, in: in}

	root := &cobra.Command{
		Use:           "spendhelm",
		Short:         "Track expenses and see where the money goes",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default: $HOME/.config/spendhelm/config.yaml)")
	flags.String("api-url", "http://localhost:8081", "SpendHelm API base URL")
	flags.String("token-file", "", "where the login token is kept (default: $XDG_DATA_HOME/spendhelm/token.json)")
	flags.Bool("json", false, "print raw JSON instead of tables")
	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("api_url", flags.Lookup("api-url"))
	_ = a.v.BindPFlag("token_file", flags.Lookup("token-file"))
	_ = a.v.BindPFlag("json", flags.Lookup("json"))

	root.AddCommand(
		a.registerCmd(),
		a.loginCmd(),
		a.logoutCmd(),
		a.meCmd(),
		a.expensesCmd(),
		a.categoriesCmd(),
		a.prefsCmd(),
		a.reportCmd(),
	)
	return root
}

func (a *app) init() error {
	a.v.SetEnvPrefix("SPENDHELM")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if cfgFile := a.v.GetString("config"); cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		a.v.AddConfigPath(home + "/.config/spendhelm")
		a.v.SetConfigName("config")
		a.v.SetConfigType("yaml")
	}
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	tokenPath := a.v.GetString("token_file")
	if tokenPath == "" {
		p, err := client.DefaultTokenPath()
		if err != nil {
			return fmt.Errorf("failed to locate token file: %w", err)
		}
		tokenPath = p
	}
	a.tokens = client.NewFileTokenStore(tokenPath)
	a.client = client.New(a.v.GetString("api_url"), a.tokens)
	return nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stdin).ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
