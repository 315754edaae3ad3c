package main

import (
	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/protocol"
)

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdAIDelete, []byte(args[0]))
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdAIDelete, frame); err != nil {
				return err
			}
			okColor.Printf("deleted %q\n", args[0])
			return nil
		},
	}
}
