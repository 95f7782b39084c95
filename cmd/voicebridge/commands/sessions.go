package commands

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/hikevindiaz/voicebridge/pkg/bridge"
	"github.com/hikevindiaz/voicebridge/pkg/cli"
)

var sessionsAddr string

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List live sessions on a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := http.Get(fmt.Sprintf("http://%s/admin/sessions", sessionsAddr))
		if err != nil {
			return fmt.Errorf("query server: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		var infos []bridge.SessionInfo
		if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		if len(infos) == 0 {
			fmt.Println("no live sessions")
			return nil
		}

		tbl := cli.Table{
			Styles:  cli.NewStyles(cli.DefaultTheme),
			Headers: []string{"CALL", "AGENT", "STATE", "DURATION", "TURNS", "IN", "OUT", "DROPPED"},
		}
		for _, info := range infos {
			dur := int(time.Since(time.Time(info.StartedAt)).Milliseconds())
			tbl.Rows = append(tbl.Rows, []string{
				info.CallID,
				info.AgentID,
				info.State.String(),
				cli.FormatDuration(dur),
				fmt.Sprintf("%d", info.Turns),
				cli.FormatCount(info.Stats.FramesIn),
				cli.FormatCount(info.Stats.FramesOut),
				cli.FormatCount(info.Stats.DroppedIn + info.Stats.DroppedOut),
			})
		}
		fmt.Print(tbl.Render())
		return nil
	},
}

var sessionsHangupCmd = &cobra.Command{
	Use:   "hangup <call-id>",
	Short: "Hang up one live session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("http://%s/admin/sessions/%s/hangup", sessionsAddr, args[0])
		resp, err := http.Post(url, "", nil)
		if err != nil {
			return fmt.Errorf("query server: %w", err)
		}
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusAccepted:
			fmt.Printf("hangup requested for %s\n", args[0])
			return nil
		case http.StatusNotFound:
			return fmt.Errorf("no live session for call %s", args[0])
		default:
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
	},
}

func init() {
	sessionsCmd.PersistentFlags().StringVar(&sessionsAddr, "addr", "localhost:8080", "server admin address")
	sessionsCmd.AddCommand(sessionsHangupCmd)
	rootCmd.AddCommand(sessionsCmd)
}
