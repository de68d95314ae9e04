package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/pkg/security"
	"github.com/forest6511/sentrivault/pkg/store"
)

// Account flags
var (
	signupEmail  string
	signupName   string
	signupWallet string
	loginEmail   string
)

func init() {
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Account email (prompted when empty)")
	signupCmd.Flags().StringVar(&signupName, "name", "", "Display name (prompted when empty)")
	signupCmd.Flags().StringVar(&signupWallet, "wallet", "", "Optional wallet address")
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (prompted when empty)")
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}

		email, err := valueOrPrompt(signupEmail, "Email: ")
		if err != nil {
			return err
		}
		name, err := valueOrPrompt(signupName, "Name: ")
		if err != nil {
			return err
		}
		password, err := readNewSecret("Password: ", "Confirm password: ")
		if err != nil {
			return err
		}

		check := security.ValidatePasswordStrength(password)
		if check.Strength == security.StrengthWeak {
			fmt.Fprintf(os.Stderr, "Warning: password strength is %s (%d/100)\n", check.Strength, check.Score)
		}

		u, err := st.CreateUser(cmd.Context(), email, name, password, signupWallet)
		if errors.Is(err, store.ErrDuplicateEmail) {
			return fmt.Errorf("an account with email %s already exists", email)
		}
		if err != nil {
			return explain(err)
		}

		if jsonOutput {
			return printJSON(publicUser(u))
		}
		fmt.Printf("Account created. Signed in as %s <%s>\n", u.Name, u.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to an existing account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}

		email, err := valueOrPrompt(loginEmail, "Email: ")
		if err != nil {
			return err
		}
		password, err := readSecret("Password: ")
		if err != nil {
			return err
		}

		u, err := st.AuthenticateUser(cmd.Context(), email, password)
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(publicUser(u))
		}
		fmt.Printf("Signed in as %s <%s>\n", u.Name, u.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out of the current account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		if err := st.Logout(cmd.Context()); err != nil {
			return explain(err)
		}
		fmt.Println("Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		u, err := st.CurrentUser(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(publicUser(u))
		}
		fmt.Printf("%s <%s>\n", u.Name, u.Email)
		fmt.Printf("  ID:         %s\n", u.ID)
		if u.WalletAddress != "" {
			fmt.Printf("  Wallet:     %s\n", u.WalletAddress)
		}
		fmt.Printf("  Vault PIN:  %s\n", yesNo(u.HasVaultPIN()))
		fmt.Printf("  Created:    %s\n", u.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  Last login: %s\n", u.LastLogin.Format(time.RFC3339))
		return nil
	},
}

// userView is a User without credential digests.
type userView struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	WalletAddress string    `json:"walletAddress,omitempty"`
	HasVaultPIN   bool      `json:"hasVaultPin"`
	CreatedAt     time.Time `json:"createdAt"`
	LastLogin     time.Time `json:"lastLogin"`
}

func publicUser(u *store.User) userView {
	return userView{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		WalletAddress: u.WalletAddress,
		HasVaultPIN:   u.HasVaultPIN(),
		CreatedAt:     u.CreatedAt,
		LastLogin:     u.LastLogin,
	}
}

func valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	line, err := prompt(label)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
