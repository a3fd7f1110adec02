package cmd

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"sibterm/pkg/config"
	"sibterm/pkg/output"
	"sibterm/pkg/shellinabox"
)

var openCmd = &cobra.Command{
	Use:   "open <url>",
	Short: "Open a session and print its id",
	Long: `Open a new ShellInABox session without attaching a terminal.

The session id and the size it was opened with are printed. This is useful to
check that an endpoint speaks the protocol before connecting to it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, err := output.FromCmd(cmd)
		if err != nil {
			return err
		}
		return runOpen(cmd.Context(), GetConfig(), args[0], formatter)
	},
}

type openResult struct {
	Endpoint string `json:"endpoint"`
	Session  string `json:"session"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

func (r openResult) Text() string {
	return fmt.Sprintf("Session:  %s\nEndpoint: %s\nSize:     %dx%d", r.Session, r.Endpoint, r.Width, r.Height)
}

func runOpen(ctx context.Context, cfg *config.Config, url string, formatter *output.Formatter) error {
	client := shellinabox.NewClient(url, cfg.ClientOptions())
	defer client.Close()

	dims := cfg.Dimensions()
	session, err := client.Open(ctx, dims)
	if err != nil {
		return err
	}
	log.Debug().Str("session", session).Str("endpoint", url).Msg("Session opened")

	return formatter.Output(openResult{
		Endpoint: client.Endpoint(),
		Session:  session,
		Width:    dims.Width,
		Height:   dims.Height,
	})
}

func init() {
	output.AddFormatFlag(openCmd)
	rootCmd.AddCommand(openCmd)
}
