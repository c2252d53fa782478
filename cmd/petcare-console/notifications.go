package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// nowFunc is the clock used by date-relative commands.
var nowFunc = time.Now

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notes"},
	Short:   "Read and manage the notification center",
}

var notificationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notifications, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		items := a.notes.List()
		rows := make([][]string, 0, len(items))
		for _, n := range items {
			read := "●"
			if n.Read {
				read = ""
			}
			rows = append(rows, []string{n.ID, read, n.Timestamp.Local().Format("2006-01-02 15:04"),
				string(n.Priority), string(n.Type), n.Title, n.Message})
		}
		out := cmd.OutOrStdout()
		printTable(out, "No notifications", []string{"ID", "New", "When", "Priority", "Type", "Title", "Message"}, rows)
		fmt.Fprintf(out, "%d unread\n", a.notes.UnreadCount())
		return nil
	},
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read ID",
	Short: "Mark one notification read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		if !a.notes.MarkRead(cmd.Context(), args[0]) {
			return fmt.Errorf("no notification %q", args[0])
		}
		return nil
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification read",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		a.notes.MarkAllRead(cmd.Context())
		return nil
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Remove one notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		if !a.notes.Remove(cmd.Context(), args[0]) {
			return fmt.Errorf("no notification %q", args[0])
		}
		return nil
	},
}

var notificationsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		a.notes.Clear(cmd.Context())
		return nil
	},
}

var notificationsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull the server's notifications for the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(false)
		if err != nil {
			return err
		}
		defer a.Close()
		u, err := a.user()
		if err != nil {
			return err
		}
		n, err := a.notes.Sync(cmd.Context(), a.client, u.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d new notifications\n", n)
		return nil
	},
}

func init() {
	notificationsCmd.AddCommand(
		notificationsListCmd,
		notificationsReadCmd,
		notificationsReadAllCmd,
		notificationsDeleteCmd,
		notificationsClearCmd,
		notificationsSyncCmd,
	)
}
