package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/svf"
	"github.com/spf13/cobra"
)

var svfCmd = &cobra.Command{
	Use:   "svf <file>",
	Short: "Play an SVF script",
	Long: `Play a Serial Vector Format script on the configured backend. The script
addresses the whole chain through HIR/TIR/HDR/TDR; no chain scan is done.
Any TDO mismatch stops playback with the script line.`,
	Args: cobra.ExactArgs(1),
	RunE: runSVF,
}

func init() {
	rootCmd.AddCommand(svfCmd)
}

func runSVF(cmd *cobra.Command, args []string) error {
	prog, err := svf.Load(args[0])
	if err != nil {
		return err
	}
	p, b, _, err := openPort()
	if err != nil {
		return err
	}
	defer b.Close()

	p.Reset()
	if err := prog.Play(p); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d steps played\n", args[0], len(prog.Steps))
	return nil
}
