package cmd

import (
	"fmt"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/idcode/deviceinfo"
	"github.com/spf13/cobra"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Scan the JTAG chain and identify each device",
	Long: `Reset the TAP, shift the power-on IDCODE registers out of every device and
match them against the built-in device table. Position 0 is nearest TDO.

Examples:
  otk detect --backend sim
  otk detect -v --config rpi.yaml`,
	Args: cobra.NoArgs,
	RunE: runDetect,
}

func init() {
	rootCmd.AddCommand(detectCmd)
}

func runDetect(cmd *cobra.Command, args []string) error {
	s, b, _, err := openSession()
	if err != nil {
		return err
	}
	defer b.Close()

	out := cmd.OutOrStdout()
	nodes := s.Nodes()
	fmt.Fprintf(out, "Found %d device(s):\n", len(nodes))
	for _, n := range nodes {
		if n.Bypass {
			fmt.Fprintf(out, "  [%d] no IDCODE (BYPASS)\n", n.Position)
			continue
		}
		info := deviceinfo.Lookup(n.IDCode)
		fmt.Fprintf(out, "  [%d] 0x%08X  %-10s %s, %s\n", n.Position, n.IDCode, info.Name, info.Manufacturer.Name, info.Description)
		fmt.Fprintf(out, "       IR length: %d", n.IRLen)
		if n.Identity != nil && n.Identity.SegmentCount() > 1 {
			fmt.Fprintf(out, ", %d segments (master %d)", n.Identity.SegmentCount(), n.Identity.MasterSegment)
		}
		if n.Identity != nil && n.Identity.Fuses() {
			fmt.Fprint(out, ", key storage")
		}
		fmt.Fprintln(out)
	}
	return nil
}
