package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	backendFlag string
	tckFlag     string
)

var rootCmd = &cobra.Command{
	Use:   "otk",
	Short: "Xilinx eFUSE and BBRAM key provisioning over bit-banged JTAG",
	Long: `otk drives a JTAG TAP one bit at a time over GPIO lines, a Bus Pirate or a
CMSIS-DAP probe and uses it to program AES keys into Xilinx eFUSE rows and
battery-backed RAM.

Settings are read from ~/.config/opentracekey/config.yaml unless --config is
given; --backend and --tck override the file.

Examples:
  otk interfaces                              # List adapters
  otk detect --backend sim                    # Scan the simulated chain
  otk efuse read --row 0 --page 0             # Read one fuse row
  otk bbram program --key 0011...EEFF         # Program and verify a BBRAM key
  otk svf readid.svf                          # Play an SVF script`,
	Version:       "0.3.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "otk:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file")
	rootCmd.PersistentFlags().StringVarP(&backendFlag, "backend", "b", "",
		"pin driver (cmsis-dap, buspirate, gpio, rpio, sim)")
	rootCmd.PersistentFlags().StringVar(&tckFlag, "tck", "", "TCK frequency, e.g. 1MHz")
}

func logger() *log.Logger {
	if verbose {
		return log.New(os.Stderr, "otk: ", log.Ltime)
	}
	return log.New(io.Discard, "", 0)
}
