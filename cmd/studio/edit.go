// cmd/studio/edit.go
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Corphon/ShortsStudio/internal/services"
)

type editOptions struct {
	image       string
	instruction string
	output      string
}

func newEditCmd(state *cliState) *cobra.Command {
	opts := &editOptions{}
	cmd := &cobra.Command{
		Use:   "edit",
		Short: "Edit an image by instruction",
		Long: `Sends an image and an editing instruction, then saves the edited image.

Example:
  studio edit --image cat.png --instruction "add a retro filter" -o cat-retro.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(opts.image)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			// MIME 留空，由内容识别
			image, err := state.gateway.EditImage(cmd.Context(), opts.instruction, source, "")
			if err != nil {
				return errors.New(services.UserMessage(err))
			}
			return saveImage(cmd.OutOrStdout(), opts.output, image)
		},
	}

	cmd.Flags().StringVar(&opts.image, "image", "", "source image file")
	cmd.Flags().StringVar(&opts.instruction, "instruction", "", "editing instruction")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file; extension added when missing")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("instruction")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
