// Command spritectl is the host-side devtool for exercising a Sprite
// One coprocessor over its serial link: uploading, listing and
// deleting models, selecting one, running inference, and reading the
// firmware version and AI status.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/transport"
)

var (
	serialDevice string
	baudRate     int

	errColor  = color.New(color.FgRed, color.Bold)
	okColor   = color.New(color.FgGreen)
	headColor = color.New(color.FgCyan, color.Bold)
)

func main() {
	root := &cobra.Command{
		Use:   "spritectl",
		Short: "Devtool CLI for the Sprite One coprocessor",
	}
	root.PersistentFlags().StringVar(&serialDevice, "serial", "/dev/ttyUSB0", "serial device path")
	root.PersistentFlags().IntVar(&baudRate, "baud", 115200, "serial baud rate")

	root.AddCommand(
		newVersionCmd(),
		newUploadCmd(),
		newSelectCmd(),
		newInferCmd(),
		newStatusCmd(),
		newListCmd(),
		newDeleteCmd(),
	)

	if err := root.Execute(); err != nil {
		errColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// connect opens the configured serial link and wraps it in a client.
func connect() (*client, func(), error) {
	stream, err := transport.OpenSerial(transport.SerialConfig{Device: serialDevice, Baud: baudRate})
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", serialDevice, err)
	}
	c, err := newClient(stream)
	if err != nil {
		stream.Close()
		return nil, nil, err
	}
	return c, func() { stream.Close() }, nil
}
