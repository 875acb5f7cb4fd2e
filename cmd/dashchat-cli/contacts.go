package main

import (
	"text/tabwriter"

	"dashchat/internal/service"

	"github.com/spf13/cobra"
)

func newContactsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "contacts",
		Short: "List the people you can message",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.identity(); err != nil {
				return err
			}

			contacts := service.NewContactService(a.store, a.client(), a.logger).Resolve(cmd.Context())
			if len(contacts) == 0 {
				printf(cmd.OutOrStdout(), "No contacts\n")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			printf(tw, "ID\tNAME\tROLE\tCOMPANY\n")
			for _, c := range contacts {
				printf(tw, "%s\t%s\t%s\t%s\n", c.ID, c.DisplayName, c.Role, c.CompanyName)
			}
			return tw.Flush()
		},
	}
}
