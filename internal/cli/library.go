package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/library"
)

var (
	// Library command flags
	libraryListMethod  string
	libraryListLimit   int
	libraryListJSON    bool
	libraryShowFormat  string
	libraryShowPreview bool
)

// libraryCmd represents the library command group
var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage saved palettes and preferences",
	Long: `Manage the local palette library.

Palettes saved with 'tincture extract --save' or by 'tincture watch' are
stored in a SQLite database, by default in the user config directory. The
library also holds the default colour count and method used by the watcher.`,
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved palettes, newest first",
	Args:  cobra.NoArgs,
	RunE:  runLibraryList,
}

var libraryShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a saved palette",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryShow,
}

var libraryDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a saved palette",
	Args:    cobra.ExactArgs(1),
	RunE:    runLibraryDelete,
}

var librarySetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a preference (colours, method)",
	Long: `Store a preference in the library.

Running watchers that were started without --colours or --method pick up
changes immediately.

Keys:
  colours   number of colours to extract (3-8)
  method    extraction method (kmeans, histogram)`,
	Args: cobra.ExactArgs(2),
	RunE: runLibrarySet,
}

var libraryGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a stored preference",
	Args:  cobra.ExactArgs(1),
	RunE:  runLibraryGet,
}

func init() {
	libraryListCmd.Flags().StringVarP(&libraryListMethod, "method", "m", "", "only list palettes from this method")
	libraryListCmd.Flags().IntVarP(&libraryListLimit, "limit", "n", 0, "maximum number of palettes to list")
	libraryListCmd.Flags().BoolVar(&libraryListJSON, "json", false, "output as JSON")

	libraryShowCmd.Flags().StringVarP(&libraryShowFormat, "format", "f", "hex", "output format (hex, rgb, json)")
	libraryShowCmd.Flags().BoolVar(&libraryShowPreview, "preview", false, "show colour swatches when writing to a terminal")

	libraryCmd.AddCommand(libraryListCmd)
	libraryCmd.AddCommand(libraryShowCmd)
	libraryCmd.AddCommand(libraryDeleteCmd)
	libraryCmd.AddCommand(librarySetCmd)
	libraryCmd.AddCommand(libraryGetCmd)
}

// openLibrary opens the configured palette library.
func openLibrary(ctx context.Context) (*library.Store, error) {
	store, err := library.Open(ctx, cfg.LibraryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open library: %w", err)
	}
	return store, nil
}

func runLibraryList(cmd *cobra.Command, _ []string) error {
	opts := library.ListOptions{Limit: libraryListLimit}
	if libraryListMethod != "" {
		m, err := colour.ParseMethod(libraryListMethod)
		if err != nil {
			return err
		}
		opts.Method = m
	}

	store, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	palettes, err := store.ListPalettes(cmd.Context(), opts)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if libraryListJSON {
		if palettes == nil {
			palettes = []library.SavedPalette{}
		}
		data, err := json.MarshalIndent(palettes, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to convert to JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(palettes) == 0 {
		fmt.Fprintln(out, "No saved palettes.")
		return nil
	}
	fmt.Fprint(out, paletteTable(palettes).Render())
	return nil
}

// paletteTable lays out saved palettes one per row.
func paletteTable(palettes []library.SavedPalette) *Table {
	table := NewTable([]string{"ID", "NAME", "METHOD", "COLOURS", "CREATED"})
	table.SetColumnMaxWidth(1, 30)
	for _, p := range palettes {
		table.AddRow([]string{
			strconv.FormatInt(p.ID, 10),
			p.Name,
			string(p.Method),
			strings.Join(p.Colors, " "),
			p.CreatedAt.Local().Format("2006-01-02 15:04"),
		})
	}
	return table
}

func runLibraryShow(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	saved, err := store.GetPalette(cmd.Context(), id)
	if err != nil {
		return err
	}

	palette, err := colour.ParsePalette(saved.Colors)
	if err != nil {
		return fmt.Errorf("stored palette %d is corrupt: %w", id, err)
	}

	showPreview := libraryShowPreview && term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 - file descriptors fit in int
	output, err := formatPalette(palette, saved.Method, libraryShowFormat, showPreview)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

func runLibraryDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	store, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.DeletePalette(cmd.Context(), id); err != nil {
		return err
	}
	if !isQuiet(cmd) {
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted palette %d\n", id)
	}
	return nil
}

func runLibrarySet(cmd *cobra.Command, args []string) error {
	key, value, err := normaliseSetting(args[0], args[1])
	if err != nil {
		return err
	}

	store, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	return store.Set(cmd.Context(), key, value)
}

func runLibraryGet(cmd *cobra.Command, args []string) error {
	store, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	value, ok, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("setting %q is not set", args[0])
	}
	fmt.Fprintln(cmd.OutOrStdout(), value)
	return nil
}

// normaliseSetting validates a known preference and returns its canonical value.
func normaliseSetting(key, value string) (string, string, error) {
	switch key {
	case library.SettingColours:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return "", "", fmt.Errorf("invalid colours value %q: %w", value, err)
		}
		if n < colour.MinColours || n > colour.MaxColours {
			return "", "", fmt.Errorf("colours must be between %d and %d, got %d", colour.MinColours, colour.MaxColours, n)
		}
		return key, strconv.Itoa(n), nil
	case library.SettingMethod:
		m, err := colour.ParseMethod(value)
		if err != nil {
			return "", "", err
		}
		return key, string(m), nil
	default:
		return "", "", fmt.Errorf("unknown setting %q (valid: %s, %s)", key, library.SettingColours, library.SettingMethod)
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("palette id must be a positive integer")
	}
	return id, nil
}
