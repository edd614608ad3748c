package cmd

import (
	"fmt"
	"strconv"

	"zappem.net/pub/debug/xxd"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/jtag"
	"github.com/OpenTraceLab/OpenTraceKey/pkg/provision"
	"github.com/spf13/cobra"
)

var (
	fuseRow       int
	fusePage      int
	fuseRedundant bool
	fuseValue     string
	fuseConfirm   bool
)

var efuseCmd = &cobra.Command{
	Use:   "efuse",
	Short: "Read or blow eFUSE rows",
}

var efuseReadCmd = &cobra.Command{
	Use:   "read",
	Short: "Read one fuse row",
	Args:  cobra.NoArgs,
	RunE:  runEfuseRead,
}

var efuseDumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Read every row of a fuse page",
	Args:  cobra.NoArgs,
	RunE:  runEfuseDump,
}

var efuseProgramCmd = &cobra.Command{
	Use:   "program",
	Short: "Blow the set bits of a value into a fuse row",
	Long: `Blow every set bit of --value into the selected row, lowest bit first. Each bit
needs the external pulse module on the start/ready/end lines. Fuses cannot be
cleared; --yes is required.

If the pulse module stops answering the command fails with the row and bit
whose state is unknown. Do not retry that bit blindly.`,
	Args: cobra.NoArgs,
	RunE: runEfuseProgram,
}

func init() {
	rootCmd.AddCommand(efuseCmd)
	efuseCmd.AddCommand(efuseReadCmd, efuseDumpCmd, efuseProgramCmd)

	efuseCmd.PersistentFlags().IntVarP(&fusePage, "page", "p", 0, "fuse page (0-3)")
	efuseCmd.PersistentFlags().BoolVar(&fuseRedundant, "redundant", false, "use the redundant array")
	efuseReadCmd.Flags().IntVarP(&fuseRow, "row", "r", 0, "fuse row (0-31)")
	efuseProgramCmd.Flags().IntVarP(&fuseRow, "row", "r", 0, "fuse row (0-31)")
	efuseProgramCmd.Flags().StringVar(&fuseValue, "value", "", "bits to blow, e.g. 0x80000001")
	efuseProgramCmd.Flags().BoolVar(&fuseConfirm, "yes", false, "confirm irreversible programming")
	efuseProgramCmd.MarkFlagRequired("value")
}

func openFuses() (*provision.FuseProgrammer, *backend, error) {
	s, b, c, err := openTarget()
	if err != nil {
		return nil, nil, err
	}
	f, err := provision.NewFuseProgrammer(s)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	f.Timeout = c.HandshakeTimeout
	return f, b, nil
}

func runEfuseRead(cmd *cobra.Command, args []string) error {
	f, b, err := openFuses()
	if err != nil {
		return err
	}
	defer b.Close()

	v, err := f.ReadRow(fuseRow, fusePage, fuseRedundant)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "row %d page %d: 0x%08X\n", fuseRow, fusePage, v)
	return nil
}

func runEfuseDump(cmd *cobra.Command, args []string) error {
	f, b, err := openFuses()
	if err != nil {
		return err
	}
	defer b.Close()

	rows := make([]byte, 0, provision.FuseRows*4)
	out := cmd.OutOrStdout()
	for row := 0; row < provision.FuseRows; row++ {
		v, err := f.ReadRow(row, fusePage, fuseRedundant)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "row %2d: 0x%08X\n", row, v)
		rows = append(rows, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
	}
	if verbose {
		xxd.Print(0, rows)
	}
	return nil
}

func runEfuseProgram(cmd *cobra.Command, args []string) error {
	v, err := strconv.ParseUint(fuseValue, 0, 32)
	if err != nil {
		return fmt.Errorf("%w: --value: %v", jtag.ErrConfiguration, err)
	}
	if !fuseConfirm {
		return fmt.Errorf("%w: fuse programming is irreversible, pass --yes", jtag.ErrConfiguration)
	}
	f, b, err := openFuses()
	if err != nil {
		return err
	}
	defer b.Close()

	out := cmd.OutOrStdout()
	got, err := f.ProgramRow(fuseRow, fusePage, uint32(v), fuseRedundant)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "row %d page %d: 0x%08X\n", fuseRow, fusePage, got)
	logger().Printf("row %d: programmed bits verified", fuseRow)
	return nil
}
