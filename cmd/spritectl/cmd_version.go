package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/protocol"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the connected device's firmware version",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdVersion, nil)
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdVersion, frame); err != nil {
				return err
			}
			if len(frame.Payload) < 3 {
				return fmt.Errorf("short VERSION payload: %v", frame.Payload)
			}
			okColor.Printf("firmware version %d.%d.%d\n", frame.Payload[0], frame.Payload[1], frame.Payload[2])
			return nil
		},
	}
}
