package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/sentrivault/internal/cli"
	"github.com/forest6511/sentrivault/pkg/store"
)

// Vault flags
var (
	vaultAddKind     string
	vaultListKind    string
	vaultTitle       string
	vaultNotes       string
	vaultFields      []string // --field name=value (can be repeated)
	vaultShowSecrets bool
	vaultForce       bool
)

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultAddCmd)
	vaultCmd.AddCommand(vaultListCmd)
	vaultCmd.AddCommand(vaultGetCmd)
	vaultCmd.AddCommand(vaultUpdateCmd)
	vaultCmd.AddCommand(vaultDeleteCmd)

	vaultAddCmd.Flags().StringVar(&vaultAddKind, "kind", string(store.KindPassword), "Item kind: "+kindList())
	vaultAddCmd.Flags().StringVar(&vaultTitle, "title", "", "Item title")
	vaultAddCmd.Flags().StringVar(&vaultNotes, "notes", "", "Free-form notes")
	vaultAddCmd.Flags().StringArrayVar(&vaultFields, "field", nil, "Set field value (name=value, value '-' prompts; can be repeated)")
	_ = vaultAddCmd.MarkFlagRequired("title")

	vaultListCmd.Flags().StringVar(&vaultListKind, "kind", "", "Only list items of this kind")

	vaultGetCmd.Flags().BoolVar(&vaultShowSecrets, "show-secrets", false, "Print secret values instead of masks (asks for the vault PIN when set)")

	vaultUpdateCmd.Flags().StringVar(&vaultTitle, "title", "", "New title")
	vaultUpdateCmd.Flags().StringVar(&vaultNotes, "notes", "", "New notes")
	vaultUpdateCmd.Flags().StringArrayVar(&vaultFields, "field", nil, "Replace field value (name=value, value '-' prompts; can be repeated)")

	vaultDeleteCmd.Flags().BoolVarP(&vaultForce, "force", "f", false, "Skip confirmation prompt")
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage vault items",
}

var vaultAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a vault item",
	Long: `Add a vault item of the given kind. Field names are the item's JSON keys.

Examples:
  sentrivault vault add --title Mail --field username=alice --field password=-
  sentrivault vault add --kind card --title Visa --field cardNumber=4111111111111111 --field cvv=-
  sentrivault vault add --kind note --title Recovery --notes "codes in the safe"`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := store.ParseKind(vaultAddKind)
		if err != nil {
			return err
		}
		pairs, err := parseFieldFlags(vaultFields)
		if err != nil {
			return err
		}
		if err := promptFieldValues(pairs); err != nil {
			return err
		}
		fields, err := buildFields(kind, pairs)
		if err != nil {
			return err
		}

		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		it, err := st.AddVaultItem(cmd.Context(), store.ItemInput{
			Title:  vaultTitle,
			Notes:  vaultNotes,
			Fields: fields,
		})
		if err != nil {
			return explain(err)
		}

		if jsonOutput {
			return printJSON(summarize(*it))
		}
		fmt.Printf("Added %s item '%s' (%s)\n", it.Kind(), it.Title, it.ID)
		return nil
	},
}

var vaultListCmd = &cobra.Command{
	Use:   "list",
	Short: "List vault items (no secret values)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var kind store.Kind
		if vaultListKind != "" {
			k, err := store.ParseKind(vaultListKind)
			if err != nil {
				return err
			}
			kind = k
		}

		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		items, err := st.UserVaultItems(cmd.Context())
		if err != nil {
			return explain(err)
		}

		summaries := []itemSummary{}
		for _, it := range cli.SortByTitle(items) {
			if kind != "" && it.Kind() != kind {
				continue
			}
			summaries = append(summaries, summarize(it))
		}

		if jsonOutput {
			return printJSON(summaries)
		}
		if len(summaries) == 0 {
			fmt.Println("No vault items found")
			return nil
		}
		for _, s := range summaries {
			fmt.Printf("%-36s  %-8s  %s\n", s.ID, s.Kind, s.Title)
		}
		fmt.Printf("\nTotal: %d items\n", len(summaries))
		return nil
	},
}

var vaultGetCmd = &cobra.Command{
	Use:   "get <id|title|pattern>",
	Short: "Show one vault item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		it, err := selectItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if vaultShowSecrets {
			if err := requirePIN(cmd.Context()); err != nil {
				return err
			}
		}

		values, err := fieldValues(it.Fields)
		if err != nil {
			return err
		}
		if !vaultShowSecrets {
			for name, v := range values {
				if sensitiveFields[name] {
					values[name] = cli.MaskValue(v)
				}
			}
		} else if !isTerminal(int(os.Stdout.Fd())) {
			fmt.Fprintln(os.Stderr, "Warning: printing secret values to a non-terminal output")
		}

		if jsonOutput {
			return printJSON(itemDetail{itemSummary: summarize(*it), Notes: it.Notes, Fields: values})
		}
		fmt.Printf("%s (%s)\n", it.Title, it.Kind())
		fmt.Printf("  ID:      %s\n", it.ID)
		fmt.Printf("  Created: %s\n", it.CreatedAt.Format(time.RFC3339))
		if it.UpdatedAt != nil {
			fmt.Printf("  Updated: %s\n", it.UpdatedAt.Format(time.RFC3339))
		}
		if it.Notes != "" {
			fmt.Printf("  Notes:   %s\n", it.Notes)
		}
		for _, name := range cli.MapKeys(values) {
			fmt.Printf("  %s: %s\n", name, values[name])
		}
		return nil
	},
}

var vaultUpdateCmd = &cobra.Command{
	Use:   "update <id|title|pattern>",
	Short: "Update a vault item's title, notes or fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, err := parseFieldFlags(vaultFields)
		if err != nil {
			return err
		}
		if err := promptFieldValues(pairs); err != nil {
			return err
		}

		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		it, err := selectItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		var upd store.ItemUpdate
		if cmd.Flags().Changed("title") {
			upd.Title = &vaultTitle
		}
		if cmd.Flags().Changed("notes") {
			upd.Notes = &vaultNotes
		}
		if len(pairs) > 0 {
			current, err := fieldValues(it.Fields)
			if err != nil {
				return err
			}
			for k, v := range pairs {
				current[k] = v
			}
			upd.Fields, err = buildFields(it.Kind(), current)
			if err != nil {
				return err
			}
		}

		updated, err := st.UpdateVaultItem(cmd.Context(), it.ID, upd)
		if err != nil {
			return explain(err)
		}
		if jsonOutput {
			return printJSON(summarize(*updated))
		}
		fmt.Printf("Updated '%s'\n", updated.Title)
		return nil
	},
}

var vaultDeleteCmd = &cobra.Command{
	Use:   "delete <id|title|pattern>",
	Short: "Delete a vault item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ensureStore(cmd.Context()); err != nil {
			return err
		}
		it, err := selectItem(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if !vaultForce {
			answer, err := prompt(fmt.Sprintf("Delete '%s'? [y/N]: ", it.Title))
			if err != nil {
				return err
			}
			if a := strings.TrimSpace(answer); a != "y" && a != "Y" {
				fmt.Println("Aborted")
				return nil
			}
		}

		if err := st.DeleteVaultItem(cmd.Context(), it.ID); err != nil {
			return explain(err)
		}
		fmt.Printf("Deleted '%s'\n", it.Title)
		return nil
	},
}

// sensitiveFields are the JSON keys masked by "vault get".
var sensitiveFields = map[string]bool{
	"password":       true,
	"accountNumber":  true,
	"routingNumber":  true,
	"cardNumber":     true,
	"cvv":            true,
	"ssn":            true,
	"passportNumber": true,
	"wifiPassword":   true,
	"serverPassword": true,
	"privateKey":     true,
	"seedPhrase":     true,
}

// itemSummary is the secret-free view of an item.
type itemSummary struct {
	ID        string     `json:"id"`
	Kind      store.Kind `json:"kind"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

type itemDetail struct {
	itemSummary
	Notes  string            `json:"notes,omitempty"`
	Fields map[string]string `json:"fields"`
}

func summarize(it store.VaultItem) itemSummary {
	return itemSummary{
		ID:        it.ID,
		Kind:      it.Kind(),
		Title:     it.Title,
		CreatedAt: it.CreatedAt,
		UpdatedAt: it.UpdatedAt,
	}
}

func selectItem(ctx context.Context, selector string) (*store.VaultItem, error) {
	items, err := st.UserVaultItems(ctx)
	if err != nil {
		return nil, explain(err)
	}
	return cli.SelectOne(selector, items)
}

// requirePIN asks for the vault PIN when the signed-in user has one.
func requirePIN(ctx context.Context) error {
	has, err := st.HasVaultPIN(ctx)
	if err != nil {
		return explain(err)
	}
	if !has {
		return nil
	}
	pin, err := readSecret("Vault PIN: ")
	if err != nil {
		return err
	}
	ok, err := st.VerifyVaultPIN(ctx, pin)
	if err != nil {
		return explain(err)
	}
	if !ok {
		return errors.New("incorrect vault PIN")
	}
	return nil
}

// parseFieldFlags parses --field flags into a name to value map
func parseFieldFlags(flags []string) (map[string]string, error) {
	pairs := make(map[string]string, len(flags))
	for _, f := range flags {
		name, value, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid field format %q (expected name=value)", f)
		}
		pairs[strings.TrimSpace(name)] = value
	}
	return pairs, nil
}

// promptFieldValues replaces every "-" value with hidden terminal input.
func promptFieldValues(pairs map[string]string) error {
	for _, name := range cli.MapKeys(pairs) {
		if pairs[name] != "-" {
			continue
		}
		value, err := readSecret(name + ": ")
		if err != nil {
			return err
		}
		pairs[name] = value
	}
	return nil
}

// buildFields decodes pairs into the fields type of kind. Unknown names are
// rejected.
func buildFields(kind store.Kind, pairs map[string]string) (store.ItemFields, error) {
	zero, err := store.NewFields(kind)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return nil, err
	}

	ptr := reflect.New(reflect.TypeOf(zero))
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(ptr.Interface()); err != nil {
		return nil, fmt.Errorf("invalid fields for %s item: %w (valid fields: %s)",
			kind, err, strings.Join(fieldNames(kind), ", "))
	}
	fields, ok := ptr.Elem().Interface().(store.ItemFields)
	if !ok {
		return nil, fmt.Errorf("unsupported kind %s", kind)
	}
	return fields, nil
}

// fieldNames lists the JSON keys accepted for kind.
func fieldNames(kind store.Kind) []string {
	zero, err := store.NewFields(kind)
	if err != nil {
		return nil
	}
	t := reflect.TypeOf(zero)
	names := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			names = append(names, name)
		}
	}
	return names
}

// fieldValues returns the non-empty field values keyed by JSON name.
func fieldValues(f store.ItemFields) (map[string]string, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

func kindList() string {
	names := make([]string, len(store.Kinds))
	for i, k := range store.Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
