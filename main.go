package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/schollz/progressbar/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Destination / format
	destDir    string
	assetExt   string
	assetsOnly bool

	// Export
	combineMeshes bool
	ownFile       bool

	// Scaling
	noScale     bool
	gridSpec    string
	noStretch   bool
	mainAxisStr string
	uniformGrid float64

	// Pivot
	disablePivot           bool
	pivotX, pivotY, pivotZ string

	// Selection
	filterQuery     string
	filterMode      string
	interactiveMode bool
	noIgnore        bool
	showHidden      bool

	// Output
	copySummary bool
	dryRun      bool
)

// version is the application version, set via ldflags.
var version string = "dev"

var rootCmd = &cobra.Command{
	Use:   "meshgrid [SOURCE]",
	Short: "meshgrid batch-normalizes a tree of OBJ assets.",
	Long: `meshgrid walks a source directory (or a cloned git repository), snaps each
mesh's dimensions to a configurable grid, moves each mesh's pivot to a
configurable corner or center of its bounding box, and mirrors the directory
structure into <dest>/_output. Non-asset files are copied verbatim.
Anomalies land in <dest>/_output/log.txt.`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := "."
		if len(args) == 1 {
			source = args[0]
		}

		// A git URL as source gets cloned to a temp dir and processed
		// like any local tree.
		var tempDir string
		if isGitURL(source) {
			var err error
			tempDir, err = cloneGitRepo(source)
			if err != nil {
				return err
			}
			defer os.RemoveAll(tempDir)
			source = tempDir
		}

		source, err := filepath.Abs(source)
		if err != nil {
			return fmt.Errorf("resolving source path: %w", err)
		}

		cfg, err := buildConfig(source)
		if err != nil {
			return err
		}

		tree, err := BuildTree(source, ScanOptions{
			ShowHidden: showHidden,
			NoIgnore:   noIgnore,
			AssetExt:   cfg.AssetExt,
		})
		if err != nil {
			return err
		}

		if cfg.AssetsOnly {
			tree.ApplyFormatMask(cfg.AssetExt, true)
		}
		if filterQuery != "" {
			tree.ApplyTextFilter(filterQuery)
			switch filterMode {
			case "add":
				tree.AddFilterMatchesToSelection()
			case "replace":
				tree.ReplaceSelectionWithFilterMatches()
			default:
				return fmt.Errorf("invalid filter mode %q (want add or replace)", filterMode)
			}
		}
		if interactiveMode {
			if err := runInteractiveSelection(tree); err != nil {
				return err
			}
		}

		files := tree.FlattenEffective()
		if len(files) == 0 {
			return fmt.Errorf("no files were selected")
		}

		if dryRun {
			for _, f := range files {
				fmt.Println(f)
			}
			fmt.Fprintf(os.Stderr, "%d file(s) selected.\n", len(files))
			return nil
		}

		pipe := NewPipeline(cfg)
		if err := pipe.Validate(); err != nil {
			return err
		}
		if pipe.OutputExists() {
			fmt.Fprintf(os.Stderr, "Warning: %s already contains an %s folder; duplicate files will be overwritten.\n",
				cfg.Dest, outputDirName)
		}

		bar := progressbar.New(len(files))
		pipe.Progress = func(processed, total, warnings int) {
			_ = bar.Add(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		summary, err := pipe.Run(ctx, files)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			if summary != nil {
				fmt.Fprintf(os.Stderr, "Run stopped after %d of %d files: %v\n",
					summary.Processed, summary.Total, err)
			}
			return err
		}

		text := fmt.Sprintf("%d/%d files processed with %d warnings. See %s for details.",
			summary.Processed, summary.Total, summary.Warnings,
			filepath.Join(cfg.Dest, outputDirName, "log.txt"))
		fmt.Println(text)

		if copySummary {
			if err := clipboard.WriteAll(text); err != nil {
				fmt.Fprintf(os.Stderr, "Error writing to clipboard: %v\n", err)
			} else {
				fmt.Println("Summary copied to clipboard.")
			}
		}
		return nil
	},
}

// buildConfig assembles the run configuration from the resolved flag values.
func buildConfig(source string) (*Config, error) {
	cfg := &Config{
		SourceRoot:         source,
		Dest:               destDir,
		AssetExt:           assetExt,
		AssetsOnly:         assetsOnly,
		Combine:            combineMeshes,
		OwnFilePerObject:   ownFile,
		ScalingEnabled:     !noScale,
		AllowStretching:    !noStretch,
		UniformGridSpacing: uniformGrid,
		PivotEnabled:       !disablePivot,
	}

	parts := strings.Split(gridSpec, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid grid %q (want three comma-separated spacings)", gridSpec)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("invalid grid spacing %q", p)
		}
		cfg.GridSpacing[i] = v
	}
	if cfg.UniformGridSpacing <= 0 {
		return nil, fmt.Errorf("invalid uniform grid spacing %g", cfg.UniformGridSpacing)
	}

	axis, err := parseAxis(mainAxisStr)
	if err != nil {
		return nil, err
	}
	cfg.MainAxis = axis

	for i, s := range []string{pivotX, pivotY, pivotZ} {
		p, err := parsePlacement(s)
		if err != nil {
			return nil, err
		}
		cfg.PivotPlacement[i] = p
	}

	if cfg.AssetExt == "" || !strings.HasPrefix(cfg.AssetExt, ".") {
		return nil, fmt.Errorf("invalid asset extension %q (want e.g. .obj)", cfg.AssetExt)
	}
	return cfg, nil
}

func init() {
	cobra.OnInitialize(initConfig)

	// Destination / format
	rootCmd.Flags().StringVarP(&destDir, "dest", "d", "", "Destination directory (output goes under <dest>/_output)")
	viper.BindPFlag("dest", rootCmd.Flags().Lookup("dest"))
	rootCmd.Flags().StringVar(&assetExt, "asset-ext", ".obj", "Recognized asset extension")
	viper.BindPFlag("asset_ext", rootCmd.Flags().Lookup("asset-ext"))
	rootCmd.Flags().BoolVar(&assetsOnly, "assets-only", false, "Mask non-asset files out of the selection")
	viper.BindPFlag("assets_only", rootCmd.Flags().Lookup("assets-only"))

	// Export
	rootCmd.Flags().BoolVar(&combineMeshes, "combine", false, "Merge each file's meshes into one object")
	viper.BindPFlag("combine", rootCmd.Flags().Lookup("combine"))
	rootCmd.Flags().BoolVar(&ownFile, "own-file", false, "Write one output file per object (ignored with --combine)")
	viper.BindPFlag("own_file", rootCmd.Flags().Lookup("own-file"))

	// Scaling
	rootCmd.Flags().BoolVar(&noScale, "no-scale", false, "Skip the grid-snapping pass")
	viper.BindPFlag("no_scale", rootCmd.Flags().Lookup("no-scale"))
	rootCmd.Flags().StringVar(&gridSpec, "grid", "50,50,50", "Per-axis grid spacing (comma-separated)")
	viper.BindPFlag("grid", rootCmd.Flags().Lookup("grid"))
	rootCmd.Flags().BoolVar(&noStretch, "no-stretch", false, "Preserve the aspect ratio while snapping")
	viper.BindPFlag("no_stretch", rootCmd.Flags().Lookup("no-stretch"))
	rootCmd.Flags().StringVar(&mainAxisStr, "main-axis", "x", "Anchor axis when stretching is disallowed (x, y or z)")
	viper.BindPFlag("main_axis", rootCmd.Flags().Lookup("main-axis"))
	rootCmd.Flags().Float64Var(&uniformGrid, "uniform-grid", 50, "Uniform grid spacing when stretching is disallowed")
	viper.BindPFlag("uniform_grid", rootCmd.Flags().Lookup("uniform-grid"))

	// Pivot
	rootCmd.Flags().BoolVar(&disablePivot, "no-pivot", false, "Skip the pivot pass")
	viper.BindPFlag("no_pivot", rootCmd.Flags().Lookup("no-pivot"))
	rootCmd.Flags().StringVar(&pivotX, "pivot-x", "mid", "Pivot placement on X (min, mid or max)")
	viper.BindPFlag("pivot_x", rootCmd.Flags().Lookup("pivot-x"))
	rootCmd.Flags().StringVar(&pivotY, "pivot-y", "mid", "Pivot placement on Y (min, mid or max)")
	viper.BindPFlag("pivot_y", rootCmd.Flags().Lookup("pivot-y"))
	rootCmd.Flags().StringVar(&pivotZ, "pivot-z", "mid", "Pivot placement on Z (min, mid or max)")
	viper.BindPFlag("pivot_z", rootCmd.Flags().Lookup("pivot-z"))

	// Selection
	rootCmd.Flags().StringVar(&filterQuery, "filter", "", "Case-insensitive substring filter over file names")
	viper.BindPFlag("filter", rootCmd.Flags().Lookup("filter"))
	rootCmd.Flags().StringVar(&filterMode, "filter-mode", "replace", "How filter matches apply to the selection: add or replace")
	viper.BindPFlag("filter_mode", rootCmd.Flags().Lookup("filter-mode"))
	rootCmd.Flags().BoolVar(&interactiveMode, "interactive", false, "Pick files interactively (Tab to multi-select)")
	viper.BindPFlag("interactive", rootCmd.Flags().Lookup("interactive"))
	rootCmd.Flags().BoolVar(&noIgnore, "no-ignore", false, "Don't respect a .gitignore at the source root")
	viper.BindPFlag("no_ignore", rootCmd.Flags().Lookup("no-ignore"))
	rootCmd.Flags().BoolVarP(&showHidden, "hidden", "H", false, "Include hidden files and directories")
	viper.BindPFlag("hidden", rootCmd.Flags().Lookup("hidden"))

	// Output
	rootCmd.Flags().BoolVarP(&copySummary, "clipboard", "c", false, "Copy the end-of-run summary to the clipboard")
	viper.BindPFlag("clipboard", rootCmd.Flags().Lookup("clipboard"))
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the effective file list and exit")
	viper.BindPFlag("dry_run", rootCmd.Flags().Lookup("dry-run"))

	viper.SetDefault("asset_ext", ".obj")
	viper.SetDefault("grid", "50,50,50")
	viper.SetDefault("uniform_grid", 50.0)
	viper.SetDefault("main_axis", "x")
	viper.SetDefault("filter_mode", "replace")
}

// initConfig reads the config file and MESHGRID_* environment variables.
// The config file plays the role of a preset: any flag left at its default
// picks up the value stored there.
func initConfig() {
	home, err := os.UserHomeDir()
	cobra.CheckErr(err)

	viper.AddConfigPath(filepath.Join(home, ".config", "meshgrid"))
	viper.AddConfigPath(".")
	viper.SetConfigName("config")
	viper.SetConfigType("toml")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("MESHGRID")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
		}
	}

	// Flags that were not set explicitly fall back to the preset values.
	applyPreset := func(flag string, set func()) {
		if !rootCmd.Flags().Changed(flag) && viper.IsSet(viperKey(flag)) {
			set()
		}
	}
	applyPreset("dest", func() { destDir = viper.GetString("dest") })
	applyPreset("asset-ext", func() { assetExt = viper.GetString("asset_ext") })
	applyPreset("assets-only", func() { assetsOnly = viper.GetBool("assets_only") })
	applyPreset("combine", func() { combineMeshes = viper.GetBool("combine") })
	applyPreset("own-file", func() { ownFile = viper.GetBool("own_file") })
	applyPreset("no-scale", func() { noScale = viper.GetBool("no_scale") })
	applyPreset("grid", func() { gridSpec = viper.GetString("grid") })
	applyPreset("no-stretch", func() { noStretch = viper.GetBool("no_stretch") })
	applyPreset("main-axis", func() { mainAxisStr = viper.GetString("main_axis") })
	applyPreset("uniform-grid", func() { uniformGrid = viper.GetFloat64("uniform_grid") })
	applyPreset("no-pivot", func() { disablePivot = viper.GetBool("no_pivot") })
	applyPreset("pivot-x", func() { pivotX = viper.GetString("pivot_x") })
	applyPreset("pivot-y", func() { pivotY = viper.GetString("pivot_y") })
	applyPreset("pivot-z", func() { pivotZ = viper.GetString("pivot_z") })
}

func viperKey(flag string) string {
	return strings.ReplaceAll(flag, "-", "_")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
