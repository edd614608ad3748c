package cmd

import (
	"fmt"

	"zappem.net/pub/debug/xxd"

	"github.com/OpenTraceLab/OpenTraceKey/pkg/provision"
	"github.com/spf13/cobra"
)

var (
	bbramKey        string
	bbramCRC        bool
	bbramNoJProgram bool
)

var bbramCmd = &cobra.Command{
	Use:   "bbram",
	Short: "Program the battery-backed AES key",
}

var bbramProgramCmd = &cobra.Command{
	Use:   "program",
	Short: "Program a 256-bit key and read it back",
	Long: `Clear the configuration with JPROGRAM, program the eight key words through the
ISC instructions and read them back. With --crc the key's CRC-32 is programmed
and checked after the key.

Examples:
  otk bbram program --key 00112233445566778899AABBCCDDEEFF00112233445566778899AABBCCDDEEFF
  otk bbram program --crc --key "00112233 44556677 ..."`,
	Args: cobra.NoArgs,
	RunE: runBBRAMProgram,
}

func init() {
	rootCmd.AddCommand(bbramCmd)
	bbramCmd.AddCommand(bbramProgramCmd)

	bbramProgramCmd.Flags().StringVarP(&bbramKey, "key", "k", "", "key as 64 hex digits")
	bbramProgramCmd.Flags().BoolVar(&bbramCRC, "crc", false, "program and verify the key CRC")
	bbramProgramCmd.Flags().BoolVar(&bbramNoJProgram, "no-jprogram", false, "skip clearing the configuration first")
	bbramProgramCmd.MarkFlagRequired("key")
}

func runBBRAMProgram(cmd *cobra.Command, args []string) error {
	key, err := provision.ParseKey(bbramKey)
	if err != nil {
		return err
	}
	s, b, _, err := openTarget()
	if err != nil {
		return err
	}
	defer b.Close()

	bb, err := provision.NewBBRAM(s)
	if err != nil {
		return err
	}
	bb.JProgram = !bbramNoJProgram

	var crc *uint32
	if bbramCRC {
		c := provision.KeyCRC(key)
		crc = &c
	}
	pr, err := bb.Program(key, crc)
	if err != nil {
		return err
	}
	readback, err := pr.Verify()
	if verbose {
		xxd.Print(0, readback[:])
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "BBRAM key programmed and verified\n")
	if crc != nil {
		fmt.Fprintf(out, "CRC: 0x%08X\n", *crc)
	}
	return nil
}
