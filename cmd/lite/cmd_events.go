package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/lite-ingest/internal/core/domain"
)

var eventsFlags struct {
	json bool
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail ingestion events published on NATS",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	eventsCmd.Flags().BoolVar(&eventsFlags.json, "json", false, "Print raw JSON events")
}

func runEvents(cmd *cobra.Command, _ []string) error {
	app, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.Events == nil {
		return errors.New("events: NATS_URL is not configured")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Listening on %s (Ctrl-C to stop)\n", app.Config.NATSSubject)
	return app.Events.SubscribeIngestion(cmd.Context(), func(_ context.Context, event domain.IngestionEvent) error {
		if eventsFlags.json {
			return json.NewEncoder(out).Encode(event)
		}
		status := "ok"
		if !event.Success {
			status = "FAILED"
		}
		_, err := fmt.Fprintf(out, "%s case=%s log=%d %s %s type=%s inserted=%d errors=%d %s\n",
			formatTime(event.OccurredAt), event.CaseID, event.LogID, event.Filename, status,
			event.Stats.ArtifactType, event.Stats.InsertedRecords, event.Stats.Errors, event.Message)
		return err
	})
}
