package main

import (
	"encoding/binary"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/model"
	"github.com/sprite-one/coprocessor/pkg/protocol"
	"github.com/sprite-one/coprocessor/pkg/wire"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the active model's lifecycle state and training progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdAIStatus, nil)
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdAIStatus, frame); err != nil {
				return err
			}
			if len(frame.Payload) < 12 {
				return fmt.Errorf("short AI_STATUS payload: %v", frame.Payload)
			}

			p := frame.Payload
			state := model.LifecycleState(p[0])
			kind := model.Type(p[1])
			epoch := binary.LittleEndian.Uint16(p[2:4])
			loss := wire.DecodeF32(p[4:8])
			inDim := binary.LittleEndian.Uint16(p[8:10])
			outDim := binary.LittleEndian.Uint16(p[10:12])

			headColor.Println("AI STATUS")
			fmt.Printf("  state:       %s\n", state)
			fmt.Printf("  model type:  %d\n", kind)
			fmt.Printf("  epoch:       %d\n", epoch)
			fmt.Printf("  last loss:   %g\n", loss)
			fmt.Printf("  input dim:   %d\n", inDim)
			fmt.Printf("  output dim:  %d\n", outDim)
			return nil
		},
	}
}
