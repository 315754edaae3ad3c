package main

import (
	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/protocol"
)

func newSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <name>",
		Short: "Load a stored model file as the active model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdModelSelect, []byte(args[0]))
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdModelSelect, frame); err != nil {
				return err
			}
			okColor.Printf("selected %q\n", args[0])
			return nil
		},
	}
}
