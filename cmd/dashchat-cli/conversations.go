package main

import (
	"io"
	"strings"
	"text/tabwriter"

	"dashchat/internal/conversation"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/models"
	"dashchat/pkg/constants"

	"github.com/spf13/cobra"
)

// previewLength is how many characters of the last message a summary shows.
const previewLength = 40

func newConversationsCmd(a *app) *cobra.Command {
	var withUser, groupBy string

	cmd := &cobra.Command{
		Use:   "conversations",
		Short: "List conversations, or the messages of one grouped by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			identity, err := a.identity()
			if err != nil {
				return err
			}
			if !supportedKey(groupBy) {
				return apperrors.NewValidationError("group-by", groupBy,
					"must be one of "+strings.Join(conversation.SupportedKeys(), ", "))
			}

			messages, err := a.client().ListMessages(cmd.Context(), withUser)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if withUser == "" {
				return printSummaries(out, conversation.Conversations(messages, identity.UserID))
			}
			printGroups(out, conversation.GroupBy(messages, groupBy), identity.UserID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&withUser, "with", "w", "", "show the messages exchanged with this user id")
	cmd.Flags().StringVarP(&groupBy, "group-by", "g", constants.GroupBySentDate, "grouping key for --with")
	return cmd
}

func supportedKey(key string) bool {
	for _, k := range conversation.SupportedKeys() {
		if k == key {
			return true
		}
	}
	return false
}

func printSummaries(w io.Writer, convs []models.Conversation) error {
	if len(convs) == 0 {
		printf(w, "No conversations\n")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	printf(tw, "WITH\tMESSAGES\tUNREAD\tLAST\n")
	for i := range convs {
		c := &convs[i]
		last := ""
		if m := c.LastMessage(); m != nil {
			last = preview(m.Content)
		}
		printf(tw, "%s\t%d\t%d\t%s\n", c.CounterpartID, len(c.Messages), c.UnreadCount, last)
	}
	return tw.Flush()
}

func printGroups(w io.Writer, groups []models.DateGroup, selfID string) {
	if len(groups) == 0 {
		printf(w, "No messages\n")
		return
	}
	for i, g := range groups {
		if i > 0 {
			printf(w, "\n")
		}
		printf(w, "== %s ==\n", g.Key)
		for _, m := range g.Messages {
			from := m.SenderID
			if from == selfID {
				from = "me"
			}
			printf(w, "  %s  %-10s %s  [%s]\n",
				m.CreatedAt.Local().Format("15:04"), from, m.Content, m.Status.Indicator().Label)
		}
	}
}

func preview(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	r := []rune(content)
	if len(r) <= previewLength {
		return content
	}
	return string(r[:previewLength-3]) + "..."
}
