package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sisatech/tspc/pkg/elog"
	"github.com/sisatech/tspc/pkg/pipeline"
	"github.com/sisatech/tspc/pkg/tspdecompiler"
)

var log elog.View

var (
	flagVerbose bool
	flagDebug   bool
	flagJSON    bool

	errorStatusCode    int
	errorStatusMessage error
)

// setError records a command's failure for main to translate into a
// process exit code. Commands use Run rather than RunE, so a failure is
// recorded here instead of being returned, and the command's deferred
// cleanup still runs.
func setError(err error, code int) {
	errorStatusCode = code
	errorStatusMessage = err
}

func commandInit() {

	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug output")
	rootCmd.PersistentFlags().BoolVarP(&flagJSON, "json", "j", false, "enable JSON log output")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {

		logger := &elog.CLI{}

		if flagJSON {
			logger.DisableTTY = true
			logrus.SetFormatter(&logrus.JSONFormatter{})
		} else {
			logrus.SetFormatter(logger)
		}

		logrus.SetLevel(logrus.TraceLevel)

		if flagDebug {
			logger.IsDebug = true
			logger.IsVerbose = true
		} else if flagVerbose {
			logger.IsVerbose = true
		}

		log = logger

		conf, err := loadConfig()
		if err != nil {
			log.Warnf("ignoring unreadable config file: %v", err)
			conf = defaultConfig()
		}

		viper.SetDefault("concurrency", conf.Build.Concurrency)
		viper.SetDefault("brick-dim", conf.Build.BrickDim)
		viper.SetDefault("padding-width", conf.Build.PaddingWidth)

		return nil

	}

	buildCmd.Flags().Int("concurrency", 0, "maximum number of timesteps/nodes built in parallel (0 uses the config default)")
	buildCmd.Flags().Uint32("brick-dim", 0, "brick edge length in voxels (0 uses the config default)")
	buildCmd.Flags().Uint32("padding-width", 0, "padding width recorded in the TSP header (0 uses the config default)")
	buildCmd.Flags().Uint32("structure", 0, "structure identifier recorded in the TSP header")
	_ = viper.BindPFlag("concurrency", buildCmd.Flags().Lookup("concurrency"))
	_ = viper.BindPFlag("brick-dim", buildCmd.Flags().Lookup("brick-dim"))
	_ = viper.BindPFlag("padding-width", buildCmd.Flags().Lookup("padding-width"))

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(verifyCmd)

}

var buildCmd = &cobra.Command{
	Use:   "build INFILE OUTFILE",
	Short: "Build a TSP tree file from a raw volumetric timeseries",
	Long: `Build reads INFILE's [dataDim, timesteps, Vx, Vy, Vz] prefix followed by
Vx*Vy*Vz*timesteps little-endian float32 voxels, and writes a complete TSP
tree file to OUTFILE: an octree over each timestep, folded into a per-node
time binary search tree.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {

		brickDim := uint32(viper.GetInt("brick-dim"))
		if v, _ := cmd.Flags().GetUint32("brick-dim"); v != 0 {
			brickDim = v
		}

		paddingWidth := uint32(viper.GetInt("padding-width"))
		if v, _ := cmd.Flags().GetUint32("padding-width"); v != 0 {
			paddingWidth = v
		}

		structure, _ := cmd.Flags().GetUint32("structure")

		concurrency := viper.GetInt("concurrency")
		if v, _ := cmd.Flags().GetInt("concurrency"); v != 0 {
			concurrency = v
		}

		p := pipeline.New(pipeline.Args{
			InFilename:   args[0],
			OutFilename:  args[1],
			BrickDim:     brickDim,
			PaddingWidth: paddingWidth,
			Structure:    structure,
			Concurrency:  concurrency,
			Logger:       log,
		})

		if err := p.Construct(context.Background()); err != nil {
			setError(fmt.Errorf("building %s: %w", args[1], err), 1)
			return
		}

	},
}

var describeCmd = &cobra.Command{
	Use:     "describe TSPFILE",
	Short:   "Print a TSP file's header and geometry",
	Aliases: []string{"info"},
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		f, err := os.Open(args[0])
		if err != nil {
			setError(fmt.Errorf("opening %s: %w", args[0], err), 1)
			return
		}
		defer f.Close()

		iio, err := tspdecompiler.Open(f)
		if err != nil {
			setError(fmt.Errorf("reading %s: %w", args[0], err), 2)
			return
		}

		iio.Describe(os.Stdout)

	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify TSPFILE",
	Short: "Check that a TSP file's size matches its declared header geometry",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {

		f, err := os.Open(args[0])
		if err != nil {
			setError(fmt.Errorf("opening %s: %w", args[0], err), 1)
			return
		}
		defer f.Close()

		iio, err := tspdecompiler.Open(f)
		if err != nil {
			setError(fmt.Errorf("reading %s: %w", args[0], err), 2)
			return
		}

		info, err := f.Stat()
		if err != nil {
			setError(fmt.Errorf("stat %s: %w", args[0], err), 3)
			return
		}

		want := iio.Header().TSPFileSize()
		if info.Size() != want {
			setError(fmt.Errorf("%s is %d bytes, header geometry expects %d", args[0], info.Size(), want), 4)
			return
		}

		log.Printf("%s: ok (%d bytes, %d nodes)", args[0], want, iio.NodeCount())

	},
}
