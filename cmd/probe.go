// Package cmd holds deskcap subcommands.
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/smazurov/deskcap/internal/capture"
	"github.com/smazurov/deskcap/internal/libav"
	"github.com/smazurov/deskcap/internal/logging"
	"github.com/smazurov/deskcap/internal/source"
)

// ProbeResult is what probe reports about a capture input.
type ProbeResult struct {
	InputFormat string             `json:"input_format"`
	InputURL    string             `json:"input_url"`
	Video       capture.StreamInfo `json:"video"`
	AudioIndex  int                `json:"audio_index"`
}

// Probe opens the input, selects streams, opens the video decoder and
// releases everything again.
func Probe(format, url string, frameRate int) (*ProbeResult, error) {
	libav.Init()

	src := source.New(logging.GetLogger("source"))
	defer src.Close()

	if err := src.Open(format, url, frameRate); err != nil {
		return nil, err
	}
	if err := src.ProbeStreams(); err != nil {
		return nil, err
	}
	if err := src.OpenDecoder(); err != nil {
		return nil, err
	}

	return &ProbeResult{
		InputFormat: format,
		InputURL:    url,
		Video:       src.VideoStream(),
		AudioIndex:  src.AudioIndex(),
	}, nil
}

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	defFormat, defURL := capture.DefaultInput()
	var format, url string
	var frameRate int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Open the capture input and print its video stream",
		Long: `Opens the capture input, selects the video and audio streams and opens the video decoder, ` +
			`then prints what was found. Nothing is encoded. Exits non-zero with the error code on failure.`,
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			result, err := Probe(format, url, frameRate)
			if err != nil {
				code := capture.CodeOf(err, capture.CodeOpenInputFailed)
				fmt.Fprintf(c.ErrOrStderr(), "probe failed: %s: %v\n", code, err)
				os.Exit(code.ExitCode())
			}
			if err := printProbe(c.OutOrStdout(), result, asJSON); err != nil {
				fmt.Fprintf(c.ErrOrStderr(), "probe: %v\n", err)
				os.Exit(1)
			}
		},
	}

	cmd.Flags().StringVar(&format, "input-format", defFormat, "libav input device")
	cmd.Flags().StringVar(&url, "input-url", defURL, "Input name passed to the device")
	cmd.Flags().IntVar(&frameRate, "frame-rate", capture.DefaultFrameRate, "Requested capture frame rate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")

	return cmd
}

func printProbe(w io.Writer, r *ProbeResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	audio := "none"
	if r.AudioIndex >= 0 {
		audio = fmt.Sprintf("stream %d", r.AudioIndex)
	}
	_, err := fmt.Fprintf(w,
		"Input:  %s %q\nVideo:  stream %d, %s, %dx%d, %s\nAudio:  %s\n",
		r.InputFormat, r.InputURL,
		r.Video.Index, r.Video.CodecName, r.Video.Width, r.Video.Height, r.Video.PixelFormat,
		audio)
	return err
}
