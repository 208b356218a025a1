// Command claimctl is the operator CLI for the profile claim service.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/app"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/claim"
	"github.com/ovaphlow/pitchfork/service-profile-claim/internal/profile"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/database"
	"github.com/ovaphlow/pitchfork/service-profile-claim/pkg/utilities"
)

var (
	svc    *app.App
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:           "claimctl",
	Short:         "Operate the profile claim service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		lg, err := utilities.Init(utilities.ConfigFromEnv())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = lg.Sugar()
		db, err := database.ConnectX(database.ConfigFromEnv())
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		svc = app.New(db, claim.ConfigFromEnv(), logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if svc != nil {
			_ = svc.DB.Close()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// migrateCmd creates tables and indexes.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create tables and indexes if missing",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := svc.Migrate(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
		return nil
	},
}

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage operator accounts",
}

var (
	operatorName          string
	operatorPasswordStdin bool
)

// operatorCreateCmd registers an operator. The password is read from stdin.
var operatorCreateCmd = &cobra.Command{
	Use:   "create <email>",
	Short: "Create an operator account",
	Long: `Create an operator account.

The password is read from the first line of stdin, so it never lands in
shell history:

  printf '%s\n' "$PASSWORD" | claimctl operator create ops@example.com --password-stdin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !operatorPasswordStdin {
			return errors.New("--password-stdin is required")
		}
		pw, err := readLine(cmd.InOrStdin())
		if err != nil {
			return err
		}
		o, err := svc.Operators.Create(cmd.Context(), args[0], operatorName, pw)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "operator %s created (%s)\n", o.Email, o.ID)
		return nil
	},
}

var operatorDisableCmd = &cobra.Command{
	Use:   "disable <email>",
	Short: "Disable an operator account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setOperatorDisabled(cmd, args[0], true)
	},
}

var operatorEnableCmd = &cobra.Command{
	Use:   "enable <email>",
	Short: "Re-enable a disabled operator account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setOperatorDisabled(cmd, args[0], false)
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage profiles",
}

var (
	profileUsername string
	profileKind     string
)

// profileCreateCmd seeds an unclaimed profile.
var profileCreateCmd = &cobra.Command{
	Use:   "create <display-name>",
	Short: "Create an unclaimed profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := svc.Profiles.Create(cmd.Context(), profile.CreateInput{
			DisplayName: args[0],
			Username:    profileUsername,
			Kind:        profileKind,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p.ID)
		return nil
	},
}

var claimLinkCmd = &cobra.Command{
	Use:   "claim-link",
	Short: "Manage claim links",
}

// claimLinkIssueCmd mints a link and prints it. The secret is not stored
// and cannot be shown again.
var claimLinkIssueCmd = &cobra.Command{
	Use:   "issue <profile-id>",
	Short: "Issue a single-use claim link for a profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		link, err := svc.Claims.IssueClaimLink(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, link.URL)
		fmt.Fprintf(out, "expires %s\n", link.ExpiresAt.Format("2006-01-02 15:04 MST"))
		return nil
	},
}

func init() {
	operatorCreateCmd.Flags().StringVar(&operatorName, "name", "", "display name")
	operatorCreateCmd.Flags().BoolVar(&operatorPasswordStdin, "password-stdin", false, "read the password from stdin")
	operatorCmd.AddCommand(operatorCreateCmd, operatorDisableCmd, operatorEnableCmd)

	profileCreateCmd.Flags().StringVar(&profileUsername, "username", "", "public username")
	profileCreateCmd.Flags().StringVar(&profileKind, "kind", "designer", "designer, brand or reader")
	profileCmd.AddCommand(profileCreateCmd)

	claimLinkCmd.AddCommand(claimLinkIssueCmd)

	rootCmd.AddCommand(migrateCmd, operatorCmd, profileCmd, claimLinkCmd)
}

func setOperatorDisabled(cmd *cobra.Command, email string, disabled bool) error {
	if err := svc.Operators.SetDisabled(cmd.Context(), email, disabled); err != nil {
		return err
	}
	state := "enabled"
	if disabled {
		state = "disabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "operator %s %s\n", email, state)
	return nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
