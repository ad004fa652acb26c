package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jmylchreest/tincture/internal/colour"
	"github.com/jmylchreest/tincture/internal/engine"
	"github.com/jmylchreest/tincture/internal/image"
	"github.com/jmylchreest/tincture/internal/library"
	"github.com/jmylchreest/tincture/internal/security"
	"github.com/jmylchreest/tincture/internal/util/hash"
)

// seedModeFilepath derives a manual seed from the image location.
const seedModeFilepath = "filepath"

var (
	// Extract command flags
	extractColours       int
	extractMethod        string
	extractFormat        string
	extractOutput        string
	extractShowPreview   bool
	extractSeedMode      string
	extractSeed          int64
	extractSave          bool
	extractName          string
	extractCache         bool
	extractAllowInsecure bool
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <image|directory|url>",
	Short: "Extract a colour palette from an image",
	Long: `Extract a colour palette from an image.

The image is downscaled, sampled and reduced to between 3 and 8 colours,
ordered from brightest to darkest. A directory selects a random image inside
it. HTTP(S) URLs are downloaded, and cached when --cache is set.

If the image cannot be decoded a fixed fallback palette is printed and a
warning is logged.

Supported image formats: JPEG, PNG, GIF, WebP, BMP, TIFF, AVIF

Examples:
  # Extract 5 colours (default) from an image
  tincture extract wallpaper.jpg

  # Extract 8 colours with terminal swatches
  tincture extract --preview --colours 8 wallpaper.png

  # Use the hue histogram and print JSON
  tincture extract --method histogram --format json wallpaper.jpg

  # Same palette on every run for the same file contents
  tincture extract --seed-mode content wallpaper.jpg

  # Pick a random wallpaper and save its palette to the library
  tincture extract --save ~/Pictures/wallpapers

  # Download and cache a remote image
  tincture extract --cache https://example.com/wallpaper.png`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	// Define flags for the extract command
	extractCmd.Flags().IntVarP(&extractColours, "colours", "c", 5, "number of colours to extract (3-8)")
	extractCmd.Flags().StringVarP(&extractMethod, "method", "m", string(colour.MethodKMeans), "extraction method (kmeans, histogram)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "hex", "output format (hex, rgb, json)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "output file (default: stdout)")
	extractCmd.Flags().BoolVar(&extractShowPreview, "preview", false, "show colour swatches when writing to a terminal")
	extractCmd.Flags().StringVar(&extractSeedMode, "seed-mode", "", "k-means seed mode (random, content, filepath, manual)")
	extractCmd.Flags().Int64Var(&extractSeed, "seed", 0, "seed value for --seed-mode manual (implies manual)")
	extractCmd.Flags().BoolVar(&extractSave, "save", false, "save the palette to the library")
	extractCmd.Flags().StringVar(&extractName, "name", "", "library entry name (default: image file name)")
	extractCmd.Flags().BoolVar(&extractCache, "cache", false, "cache downloaded images on disk")
	extractCmd.Flags().BoolVar(&extractAllowInsecure, "allow-insecure", false, "allow plain HTTP downloads")
}

// runExtract executes the extract command.
func runExtract(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()

	colorCount, err := resolveColourCount(flags, extractColours)
	if err != nil {
		return err
	}
	method, err := resolveMethod(flags, extractMethod)
	if err != nil {
		return err
	}

	imagePath, err := image.ResolveImagePath(args[0])
	if err != nil {
		return fmt.Errorf("invalid image path: %w", err)
	}
	logger.Debug("loading image", "path", imagePath)

	seedMode := stringOverride(flags, "seed-mode", extractSeedMode, cfg.SeedMode)
	if flags.Changed("seed") && !flags.Changed("seed-mode") {
		seedMode = string(engine.SeedModeManual)
	}
	mode, seed, err := resolveSeed(seedMode, extractSeed, flags.Changed("seed"), imagePath)
	if err != nil {
		return err
	}

	loader := image.NewSmartLoader(image.SmartLoaderOptions{
		URL: security.URLOptions{
			AllowInsecure: boolOverride(flags, "allow-insecure", extractAllowInsecure, cfg.AllowInsecure),
		},
		Cache:    boolOverride(flags, "cache", extractCache, cfg.CacheImages),
		CacheDir: cfg.CacheDir,
	})
	data, err := loader.Load(cmd.Context(), imagePath)
	if err != nil {
		return fmt.Errorf("failed to load image: %w", err)
	}

	logger.Debug("extracting palette", "colours", colorCount, "method", method, "seed_mode", mode)
	hexes, extractErr := newEngine(mode, seed).TryExtractPalette(data, colorCount, method)
	palette, err := colour.ParsePalette(hexes)
	if err != nil {
		return fmt.Errorf("failed to parse palette: %w", err)
	}

	showPreview := extractShowPreview && extractOutput == "" && term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115 - file descriptors fit in int
	output, err := formatPalette(palette, method, extractFormat, showPreview)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	// The fallback palette is printed but never stored under the image's hash.
	switch {
	case extractSave && extractErr != nil:
		logger.Warn("not saving palette, extraction failed", "path", imagePath, "error", extractErr)
	case extractSave:
		if err := savePalette(cmd, imagePath, data, method, hexes); err != nil {
			return err
		}
	}

	// Write output to file or stdout
	if extractOutput != "" {
		logger.Debug("writing output", "path", extractOutput)
		if err := os.WriteFile(extractOutput, []byte(output), 0o644); err != nil { // #nosec G306 - palette output is not sensitive
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}

	fmt.Fprint(cmd.OutOrStdout(), output)
	return nil
}

// resolveSeed maps a seed mode name to the engine mode and seed value.
// The filepath mode is resolved here because only the caller knows the path.
func resolveSeed(mode string, seed int64, seedSet bool, imagePath string) (engine.SeedMode, int64, error) {
	if strings.EqualFold(strings.TrimSpace(mode), seedModeFilepath) {
		return engine.SeedModeManual, hash.PathSeed(imagePath), nil
	}

	m, err := engine.ParseSeedMode(mode)
	if err != nil {
		return "", 0, fmt.Errorf("%w (or %s)", err, seedModeFilepath)
	}
	if m == engine.SeedModeManual && !seedSet {
		return "", 0, fmt.Errorf("seed value is required for manual seed mode (use --seed)")
	}
	return m, seed, nil
}

// savePalette records the palette in the library.
func savePalette(cmd *cobra.Command, imagePath string, data []byte, method colour.Method, hexes []string) error {
	store, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	source := imagePath
	if !image.IsURL(imagePath) {
		if abs, err := filepath.Abs(imagePath); err == nil {
			source = abs
		}
	}
	name := extractName
	if name == "" {
		name = filepath.Base(imagePath)
	}

	id, err := store.SavePalette(cmd.Context(), library.SavedPalette{
		Name:        name,
		Source:      source,
		ContentHash: hash.ContentHash(data, hash.DefaultHexLen),
		Method:      method,
		Colors:      hexes,
	})
	if err != nil {
		return fmt.Errorf("failed to save palette: %w", err)
	}

	if !isQuiet(cmd) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Saved palette %d (%s)\n", id, name)
	}
	return nil
}

// formatPalette formats the palette according to the specified format.
func formatPalette(palette *colour.Palette, method colour.Method, format string, showPreview bool) (string, error) {
	switch format {
	case "hex":
		return formatHex(palette, showPreview), nil
	case "rgb":
		return formatRGB(palette, showPreview), nil
	case "json":
		jsonBytes, err := palette.ToJSON(method)
		if err != nil {
			return "", fmt.Errorf("failed to convert to JSON: %w", err)
		}
		return string(jsonBytes) + "\n", nil
	default:
		return "", fmt.Errorf("unsupported format: %s (supported: hex, rgb, json)", format)
	}
}

// formatHex formats the palette as hex colour codes.
func formatHex(palette *colour.Palette, showPreview bool) string {
	var sb strings.Builder
	for _, rgb := range palette.Colors {
		if showPreview {
			sb.WriteString(colour.FormatColourWithPreview(rgb, 8))
		} else {
			sb.WriteString(rgb.Hex())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// formatRGB formats the palette as RGB values.
func formatRGB(palette *colour.Palette, showPreview bool) string {
	var sb strings.Builder
	for _, rgb := range palette.Colors {
		if showPreview {
			sb.WriteString(colour.ColourPreview(rgb, 8) + "  ")
		}
		sb.WriteString(rgb.String())
		sb.WriteByte('\n')
	}
	return sb.String()
}
