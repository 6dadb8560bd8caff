package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"arbiter/internal/fracture"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan [file]",
	Short: "Scan generator output text for fracture patterns",
	Long: `Applies the fracture phrase patterns directly against output text, with
no validation involved. Catches output that raised no formal failure but
still looks like a refusal or broken structure. Reads stdin when no file
is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func runScan(cmd *cobra.Command, args []string) error {
	var (
		text    []byte
		err     error
		context string
	)
	if len(args) == 1 {
		text, err = os.ReadFile(args[0])
		context = args[0]
	} else {
		text, err = io.ReadAll(os.Stdin)
		context = "stdin"
	}
	if err != nil {
		return err
	}

	fractures := fracture.ScanText(string(text), context)
	if len(fractures) == 0 {
		fmt.Println("no fractures detected")
		return nil
	}

	data, err := json.MarshalIndent(fractures, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return fmt.Errorf("%d fracture(s) detected", len(fractures))
}
