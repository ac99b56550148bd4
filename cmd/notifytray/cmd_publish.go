package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nhle/notification-tray/internal/server"
)

var (
	publishType      string
	publishNamespace string
	publishUsers     []int64
	publishLink      string
	publishCount     int
	publishList      bool
)

// publishCmd inserts canned test notifications into the server database.
var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish canned test notifications to the reference server database",
	Long: `Inserts a canned message of the given type for each user.

Example:
  notifytray publish --type open-edx.lms.discussions.reply-to-thread --user 1 --count 3`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringVarP(&publishType, "type", "t", "testserver.type1", "Message type to publish")
	publishCmd.Flags().StringVarP(&publishNamespace, "namespace", "n", "", "Namespace of the message")
	publishCmd.Flags().Int64SliceVarP(&publishUsers, "user", "u", nil, "Recipient user id (repeatable, default server.default_user_id)")
	publishCmd.Flags().StringVar(&publishLink, "link", "", "Override the click link of the message")
	publishCmd.Flags().IntVar(&publishCount, "count", 1, "Number of messages to publish")
	publishCmd.Flags().BoolVar(&publishList, "list", false, "List the known message types and exit")
	publishCmd.Flags().StringVar(&serveDBPath, "db", "", "SQLite database path (default from config)")
}

func runPublish(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if publishList {
		fmt.Fprintln(out, strings.Join(server.CannedTypes(), "\n"))
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyServerFlags(cfg)

	users := publishUsers
	if len(users) == 0 {
		users = []int64{cfg.Server.DefaultUserID}
	}

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	for i := 0; i < publishCount; i++ {
		msg, err := server.CannedMessage(publishType, publishNamespace)
		if err != nil {
			return err
		}
		if publishLink != "" {
			msg.Payload["_click_link"] = publishLink
		}

		msg, err = st.Publish(context.Background(), msg, users)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "published message %d (%s) to %d user(s)\n", msg.ID, msg.Type.Name, len(users))
	}
	return nil
}
