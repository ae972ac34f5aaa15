package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/smazurov/deskcap/internal/libav"
	"github.com/smazurov/deskcap/internal/version"
)

// BuildInfo is the build metadata plus the FFmpeg build deskcap is linked
// against.
type BuildInfo struct {
	version.Info
	Libav string `json:"libav"`
}

// CreateVersionCmd creates the version command.
func CreateVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			info := BuildInfo{Info: version.Get(), Libav: libav.Version()}
			return printVersion(c.OutOrStdout(), info, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
	return cmd
}

func printVersion(w io.Writer, info BuildInfo, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	_, err := fmt.Fprintf(w, "%s\nbuilt %s with %s for %s\nlibav %s\n",
		version.String(), info.BuildDate, info.GoVersion, info.Platform, info.Libav)
	return err
}
