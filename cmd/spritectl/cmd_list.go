package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/protocol"
	"github.com/sprite-one/coprocessor/pkg/wire"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List model files in the device's store",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdAIList, nil)
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdAIList, frame); err != nil {
				return err
			}

			names := wire.DecodeFilenames(frame.Payload)
			if len(names) == 0 {
				fmt.Println("(no models stored)")
				return nil
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}
