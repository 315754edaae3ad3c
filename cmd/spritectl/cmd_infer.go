package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/protocol"
	"github.com/sprite-one/coprocessor/pkg/wire"
)

func newInferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "infer <f32> [f32...]",
		Short: "Run inference on the active model with the given inputs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs := make([]float32, len(args))
			for i, a := range args {
				f, err := strconv.ParseFloat(a, 32)
				if err != nil {
					return fmt.Errorf("input %d (%q): %w", i, a, err)
				}
				inputs[i] = float32(f)
			}

			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdAIInfer, wire.EncodeF32s(inputs))
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdAIInfer, frame); err != nil {
				return err
			}

			out := wire.DecodeF32s(frame.Payload)
			okColor.Printf("output: %v\n", out)
			return nil
		},
	}
}
