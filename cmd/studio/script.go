// cmd/studio/script.go
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Corphon/ShortsStudio/internal/models"
	"github.com/Corphon/ShortsStudio/internal/services"
)

type scriptOptions struct {
	topic    string
	language string
	points   []string
	asJSON   bool
}

func newScriptCmd(state *cliState) *cobra.Command {
	opts := &scriptOptions{}
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Generate a grounded short-form video script",
		Long: `Generates a script split into parts, each with narration and a meme idea.
Narration backed by a web source is cited.

Example:
  studio script --topic "Half-Life 3" --lang en-US --point "Valve leaks"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.language != "" && !models.IsSupportedLanguage(opts.language) {
				return fmt.Errorf("unsupported language %q", opts.language)
			}
			segments, err := state.gateway.GenerateScript(cmd.Context(), services.ScriptRequest{
				Topic:         opts.topic,
				Language:      opts.language,
				TalkingPoints: opts.points,
			})
			if err != nil {
				return errors.New(services.UserMessage(err))
			}
			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(segments)
			}
			return renderScript(cmd.OutOrStdout(), segments)
		},
	}

	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "video topic")
	cmd.Flags().StringVarP(&opts.language, "lang", "l", models.DefaultLanguage, "script language code")
	cmd.Flags().StringArrayVarP(&opts.points, "point", "p", nil, "talking point to cover (repeatable)")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print segments as JSON")
	_ = cmd.MarkFlagRequired("topic")
	return cmd
}

// renderScript 以纯文本输出脚本，引用片段标注为 [text][n]
func renderScript(w io.Writer, segments []models.ScriptSegment) error {
	if len(segments) == 0 {
		_, err := fmt.Fprintln(w, "(empty script)")
		return err
	}

	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", i+1, seg.Label)

		var sources []models.SourceRef
		b.WriteString("    ")
		for _, span := range services.PlanHighlights(seg.NarrationText, seg.Citations) {
			if span.Source == nil {
				b.WriteString(span.Text)
				continue
			}
			sources = append(sources, *span.Source)
			fmt.Fprintf(&b, "[%s][%d]", span.Text, len(sources))
		}
		b.WriteString("\n")
		fmt.Fprintf(&b, "    Meme: %s\n", seg.VisualIdea)

		for n, src := range sources {
			fmt.Fprintf(&b, "    [%d] %s <%s>\n", n+1, src.Title, src.URI)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
