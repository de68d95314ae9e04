package main

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/spf13/cobra"
)

// minPINLength matches the shortest PIN the vault screen accepts.
const minPINLength = 4

func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinSetCmd)
	pinCmd.AddCommand(pinVerifyCmd)
}

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage the vault PIN",
}

var pinSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set or replace the vault PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		has, err := st.HasVaultPIN(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if has {
			if err := requirePIN(cmd.Context()); err != nil {
				return err
			}
		}

		pin, err := readNewSecret("New vault PIN: ", "Confirm vault PIN: ")
		if err != nil {
			return err
		}
		if err := validatePIN(pin); err != nil {
			return err
		}
		if err := st.SetVaultPIN(cmd.Context(), pin); err != nil {
			return explain(err)
		}
		fmt.Println("Vault PIN set")
		return nil
	},
}

var pinVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check a vault PIN",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		has, err := st.HasVaultPIN(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if !has {
			return errors.New("no vault PIN set: run 'sentrivault pin set'")
		}
		if err := requirePIN(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Vault PIN verified")
		return nil
	},
}

// validatePIN requires at least minPINLength digits and nothing else.
func validatePIN(pin string) error {
	if len(pin) < minPINLength {
		return fmt.Errorf("PIN must be at least %d digits", minPINLength)
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return errors.New("PIN must contain digits only")
		}
	}
	return nil
}
