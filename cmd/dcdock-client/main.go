package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dcdock/dcdock/internal/client"
	"github.com/dcdock/dcdock/internal/dock"
	"github.com/dcdock/dcdock/internal/logging"
	"github.com/dcdock/dcdock/internal/realtime"
)

var (
	serverURL string
	email     string
	password  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dcdock-client",
		Short: "Terminal client for the DCDock dock-scheduling API",
	}

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "API server base URL")
	rootCmd.PersistentFlags().StringVar(&email, "email", "", "Account email")
	rootCmd.PersistentFlags().StringVar(&password, "password", "", "Account password")

	rootCmd.AddCommand(newAssignmentsCmd())
	rootCmd.AddCommand(newWatchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func login(ctx context.Context) (*client.Client, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("both --email and --password are required")
	}
	apiClient := client.New(client.Config{BaseURL: serverURL})
	if _, err := apiClient.Login(ctx, email, password); err != nil {
		return nil, err
	}
	return apiClient, nil
}

func newAssignmentsCmd() *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List dock assignments",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			apiClient, err := login(ctx)
			if err != nil {
				return err
			}

			details, err := apiClient.ListAssignments(ctx, direction)
			if err != nil {
				return err
			}
			printAssignments(cmd.OutOrStdout(), details)
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "", "Filter by direction (IB or OB)")
	cmd.AddCommand(newAssignmentsUpdateCmd())
	return cmd
}

func newAssignmentsUpdateCmd() *cobra.Command {
	var (
		id       int64
		version  int64
		rampID   int64
		loadID   int64
		statusID int64
	)

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update an assignment with a version guard",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			apiClient, err := login(ctx)
			if err != nil {
				return err
			}

			input := client.AssignmentUpdate{Version: version}
			if cmd.Flags().Changed("ramp-id") {
				input.RampID = &rampID
			}
			if cmd.Flags().Changed("load-id") {
				input.LoadID = &loadID
			}
			if cmd.Flags().Changed("status-id") {
				input.StatusID = &statusID
			}

			updated, err := apiClient.UpdateAssignment(ctx, id, input)
			if conflict, ok := err.(*client.ConflictError); ok {
				fmt.Fprintf(cmd.OutOrStdout(),
					"Rejected: assignment is at version %d (you sent %d). Current row:\n",
					conflict.CurrentVersion, conflict.ProvidedVersion)
				printAssignments(cmd.OutOrStdout(), []dock.AssignmentDetail{conflict.CurrentData})
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated assignment %d, now at version %d\n",
				updated.ID, updated.Version)
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "Assignment id")
	cmd.Flags().Int64Var(&version, "version", 0, "Version you last observed")
	cmd.Flags().Int64Var(&rampID, "ramp-id", 0, "New ramp id")
	cmd.Flags().Int64Var(&loadID, "load-id", 0, "New load id")
	cmd.Flags().Int64Var(&statusID, "status-id", 0, "New status id")
	cmd.MarkFlagRequired("id")      //nolint:errcheck
	cmd.MarkFlagRequired("version") //nolint:errcheck
	return cmd
}

func newWatchCmd() *cobra.Command {
	var direction string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream realtime assignment updates",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			apiClient, err := login(ctx)
			if err != nil {
				return err
			}

			logger, err := logging.NewLogger("warn")
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			watcher, err := client.NewWatcher(client.WatcherConfig{
				BaseURL:   serverURL,
				Token:     apiClient.Token(),
				Direction: direction,
				Logger:    logger,
			})
			if err != nil {
				return err
			}

			done := make(chan error, 1)
			go func() {
				done <- watcher.Run(ctx)
			}()

			out := cmd.OutOrStdout()
			for event := range watcher.Events() {
				printEvent(out, event)
			}

			err = <-done
			if ctx.Err() != nil {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&direction, "direction", "", "Only watch loads moving this direction (IB or OB)")
	return cmd
}

func printAssignments(out io.Writer, details []dock.AssignmentDetail) {
	writer := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tVERSION\tRAMP\tLOAD\tDIR\tSTATUS\tETA IN\tETA OUT")
	for _, detail := range details {
		fmt.Fprintf(writer, "%d\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			detail.ID,
			detail.Version,
			detail.Ramp.Code,
			detail.Load.Reference,
			detail.Load.Direction,
			detail.Status.Code,
			formatTime(detail.EtaIn),
			formatTime(detail.EtaOut),
		)
	}
	writer.Flush() //nolint:errcheck
}

func formatTime(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04")
}

func printEvent(out io.Writer, event client.Event) {
	stamp := time.Now().Format("15:04:05")

	switch event.Type {
	case realtime.MessageTypeAssignmentCreated,
		realtime.MessageTypeAssignmentUpdated,
		realtime.MessageTypeAssignmentDeleted:
		var push realtime.AssignmentEventMessage
		if err := json.Unmarshal(event.Raw, &push); err != nil {
			break
		}
		fmt.Fprintf(out, "[%s] %s assignment %d by %s (load %s, ramp %s)\n",
			stamp, push.Action, push.AssignmentID, push.UserEmail,
			push.Data.Load.Reference, push.Data.Ramp.Code)
		return
	case realtime.MessageTypeConflictDetected:
		var push realtime.ConflictMessage
		if err := json.Unmarshal(event.Raw, &push); err != nil {
			break
		}
		fmt.Fprintf(out, "[%s] conflict on assignment %d: row at version %d, write carried %d\n",
			stamp, push.AssignmentID, push.CurrentVersion, push.AttemptedVersion)
		return
	case realtime.MessageTypeConnectionAck, realtime.MessageTypeSubscribeAck, realtime.MessageTypePong:
		return
	}

	fmt.Fprintf(out, "[%s] %s %s\n", stamp, event.Type, event.Raw)
}
