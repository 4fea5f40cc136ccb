package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInboxCmd(e *env) *cobra.Command {
	var notifications bool
	cmd := &cobra.Command{
		Use:   "inbox [conversation]",
		Short: "List conversations, or the messages in one",
		Args:  cobra.MaximumNArgs(1),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			me, err := e.requireIdentity(ctx, true)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			switch {
			case notifications:
				items, err := e.api.Notifications(ctx)
				if err != nil {
					return fmt.Errorf("load notifications: %w", err)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No notifications")
				}
				for _, n := range items {
					fmt.Fprintf(out, "%s  @%s %s\n", n.CreatedAt.Local().Format("Jan 2 15:04"), n.Actor, n.Text)
				}
			case len(args) == 1:
				messages, err := e.api.Messages(ctx, args[0])
				if err != nil {
					return fmt.Errorf("load messages: %w", err)
				}
				for _, m := range messages {
					who := "them"
					if m.SenderID == me.ID {
						who = "you"
					}
					fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Text)
				}
			default:
				conversations, err := e.api.Conversations(ctx)
				if err != nil {
					return fmt.Errorf("load conversations: %w", err)
				}
				if len(conversations) == 0 {
					fmt.Fprintln(out, "No conversations")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
				for _, c := range conversations {
					unread := ""
					if c.UnreadCount > 0 {
						unread = fmt.Sprintf("(%d new)", c.UnreadCount)
					}
					fmt.Fprintf(tw, "%s\t@%s\t%s\t%s\n", c.ID, c.PeerUsername, c.LastMessage, unread)
				}
				_ = tw.Flush()
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&notifications, "notifications", false, "Show activity instead of conversations")
	return cmd
}

func newSendCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "send <conversation> <text>",
		Short: "Send a message",
		Args:  cobra.MinimumNArgs(2),
		RunE: e.run(func(cmd *cobra.Command, args []string) error {
			ctx, cancel := e.context(cmd)
			defer cancel()

			if _, err := e.requireIdentity(ctx, true); err != nil {
				return err
			}

			_, sent, err := e.api.Send(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return fmt.Errorf("send: %w", err)
			}
			if !sent {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to send")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Sent")
			return nil
		}),
	}
}
