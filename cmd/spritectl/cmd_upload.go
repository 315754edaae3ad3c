package main

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sprite-one/coprocessor/pkg/protocol"
)

// uploadChunkSize matches the 200/200/200/168-byte chunking spec.md
// §8 scenario 2 demonstrates; any size up to the 255-byte frame
// payload limit works, this one just mirrors the documented example.
const uploadChunkSize = 200

func newUploadCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "upload <file.aif32>",
		Short: "Upload a model file to the device's flat file store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if name == "" {
				name = filepath.Base(path)
			}

			c, closeFn, err := connect()
			if err != nil {
				return err
			}
			defer closeFn()

			frame, err := c.do(protocol.CmdModelUpload, []byte(name))
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdModelUpload, frame); err != nil {
				return err
			}

			bar := progressbar.NewOptions(len(data),
				progressbar.OptionSetDescription(fmt.Sprintf("uploading %s", name)),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowBytes(true),
				progressbar.OptionClearOnFinish(),
			)

			for off := 0; off < len(data); off += uploadChunkSize {
				end := off + uploadChunkSize
				if end > len(data) {
					end = len(data)
				}
				frame, err := c.do(protocol.CmdUploadChunk, data[off:end])
				if err != nil {
					return err
				}
				if err := statusErr(protocol.CmdUploadChunk, frame); err != nil {
					return err
				}
				_ = bar.Add(end - off)
			}
			bar.Finish()

			crc := crc32.ChecksumIEEE(data)
			crcBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(crcBytes, crc)
			frame, err = c.do(protocol.CmdUploadEnd, crcBytes)
			if err != nil {
				return err
			}
			if err := statusErr(protocol.CmdUploadEnd, frame); err != nil {
				return err
			}

			okColor.Printf("uploaded %s as %q (%d bytes)\n", path, name, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "destination filename (defaults to the source file's base name)")
	return cmd
}
