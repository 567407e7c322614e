package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/shadowdev/shadowbot/internal/database/types"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// TicketCommands returns the ticket maintenance commands.
func TicketCommands(deps *CLIDependencies) []*cli.Command {
	return []*cli.Command{
		{
			Name:  "tickets",
			Usage: "Inspect and maintain stored tickets",
			Commands: []*cli.Command{
				{
					Name:      "list",
					Usage:     "List the tickets of a server",
					ArgsUsage: "SERVER_ID",
					Flags: []cli.Flag{
						&cli.BoolFlag{
							Name:  "closed",
							Usage: "List closed tickets instead of open ones",
						},
					},
					Action: handleList(deps),
				},
				{
					Name:      "show",
					Usage:     "Show the ticket bound to a channel",
					ArgsUsage: "CHANNEL_ID",
					Action:    handleShow(deps),
				},
				{
					Name:      "purge",
					Usage:     "Delete closed tickets older than a given age",
					ArgsUsage: "SERVER_ID",
					Flags: []cli.Flag{
						&cli.DurationFlag{
							Name:  "older-than",
							Usage: "Minimum time since the ticket was closed",
							Value: 30 * 24 * time.Hour,
						},
					},
					Action: handlePurge(deps),
				},
			},
		},
	}
}

// handleList handles the 'tickets list' command.
func handleList(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		serverID, err := idArg(c, ErrServerRequired)
		if err != nil {
			return err
		}

		tickets, err := deps.DB.Model().Ticket().GetAllTickets(ctx, serverID, c.Bool("closed"))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tOWNER\tTYPE\tCLAIMED BY\tCREATED")

		for _, t := range tickets {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n",
				t.ChannelID, t.OwnerID, t.TypeKey, optionalID(t.ClaimedByID), t.CreatedAt.Format(time.RFC3339))
		}

		return w.Flush()
	}
}

// handleShow handles the 'tickets show' command.
func handleShow(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		channelID, err := idArg(c, ErrChannelRequired)
		if err != nil {
			return err
		}

		t, err := deps.DB.Model().Ticket().GetTicketByChannel(ctx, channelID)
		if err != nil {
			return err
		}

		printTicket(t)

		return nil
	}
}

// handlePurge handles the 'tickets purge' command.
func handlePurge(deps *CLIDependencies) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		serverID, err := idArg(c, ErrServerRequired)
		if err != nil {
			return err
		}

		age := c.Duration("older-than")
		if age <= 0 {
			return ErrInvalidAge
		}

		count, err := deps.DB.Model().Ticket().PurgeClosedTickets(ctx, serverID, time.Now().Add(-age))
		if err != nil {
			return err
		}

		deps.Logger.Info("Purge finished",
			zap.Uint64("serverID", uint64(serverID)),
			zap.Int64("deleted", count))

		return nil
	}
}

func idArg(c *cli.Command, missing error) (snowflake.ID, error) {
	if c.Args().Len() != 1 {
		return 0, missing
	}

	id, err := snowflake.Parse(c.Args().First())
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidID, err)
	}

	return id, nil
}

func optionalID(id snowflake.ID) string {
	if id == 0 {
		return "-"
	}

	return id.String()
}

func printTicket(t *types.Ticket) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintf(w, "Channel:\t%d\n", t.ChannelID)
	fmt.Fprintf(w, "Reference:\t%s\n", t.ID)
	fmt.Fprintf(w, "Server:\t%d\n", t.ServerID)
	fmt.Fprintf(w, "Owner:\t%d\n", t.OwnerID)
	fmt.Fprintf(w, "Type:\t%s\n", t.TypeKey)
	fmt.Fprintf(w, "Created:\t%s\n", t.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Claimed by:\t%s\n", optionalID(t.ClaimedByID))
	fmt.Fprintf(w, "Members:\t%v\n", t.Members)
	fmt.Fprintf(w, "Closed:\t%t\n", t.IsClosed)

	if t.IsClosed {
		fmt.Fprintf(w, "Closed at:\t%s\n", t.ClosedAt.Format(time.RFC3339))
		fmt.Fprintf(w, "Closed by:\t%s\n", optionalID(t.ClosedByID))
		fmt.Fprintf(w, "Reason:\t%s\n", t.CloseReason)
	}
}
