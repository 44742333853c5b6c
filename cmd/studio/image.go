// cmd/studio/image.go
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/services"
)

type imageOptions struct {
	prompt string
	output string
}

func newImageCmd(state *cliState) *cobra.Command {
	opts := &imageOptions{}
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Generate a meme-style image from an idea",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			image, err := state.gateway.GenerateImage(cmd.Context(), opts.prompt)
			if err != nil {
				return errors.New(services.UserMessage(err))
			}
			return saveImage(cmd.OutOrStdout(), opts.output, image)
		},
	}

	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "image idea")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file; extension added when missing")
	_ = cmd.MarkFlagRequired("prompt")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// saveImage 写入图片文件，路径没有扩展名时按 MIME 补全
func saveImage(w io.Writer, path string, image models.ImageHandle) error {
	if filepath.Ext(path) == "" {
		if m := mimetype.Lookup(image.MIMEType); m != nil {
			path += m.Extension()
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, image.Data, 0644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	_, err := fmt.Fprintf(w, "saved %s (%d bytes) to %s\n", image.MIMEType, len(image.Data), path)
	return err
}
