package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	privchat "github.com/privchat/privchat-go"
)

var (
	sendTimeout   time.Duration
	uploadTimeout time.Duration
)

func init() {
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 30*time.Second, "How long to wait for the delivery ack")
	uploadCmd.Flags().DurationVar(&uploadTimeout, "timeout", 60*time.Second, "How long to wait for upload and delivery")
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(uploadCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <user-id> <text>",
	Short: "Send a text message to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, text := args[0], args[1]
		cfg := requireAuth()

		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		sock := privchat.NewSocket(cfg.Server.URL, &privchat.SocketConfig{
			Token: cfg.Auth.Token,
		})
		if err := sock.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer sock.Close()

		randomID := uuid.NewString()
		frame := privchat.TextFrame{To: userID, Body: text, RandomID: randomID}
		if err := sock.Send(ctx, frame); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}

		id, err := waitForAck(ctx, sock, randomID)
		if err != nil {
			return err
		}
		fmt.Printf("Delivered (message id %s)\n", id)
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload <user-id> <file>",
	Short: "Upload a file and send it to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID, path := args[0], args[1]
		cfg := requireAuth()

		ctx, cancel := context.WithTimeout(context.Background(), uploadTimeout)
		defer cancel()

		client := getClient()
		stored, err := client.UploadFile(ctx, path)
		if err != nil {
			return fmt.Errorf("upload failed: %w", err)
		}
		fmt.Printf("Uploaded %s (%d bytes)\n", stored.Name, stored.Size)

		sock := privchat.NewSocket(cfg.Server.URL, &privchat.SocketConfig{
			Token: cfg.Auth.Token,
		})
		if err := sock.Connect(ctx); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer sock.Close()

		randomID := uuid.NewString()
		frame := privchat.FileFrame{To: userID, FileID: stored.ID, RandomID: randomID}
		if err := sock.Send(ctx, frame); err != nil {
			return fmt.Errorf("failed to send: %w", err)
		}

		id, err := waitForAck(ctx, sock, randomID)
		if err != nil {
			return err
		}
		fmt.Printf("Delivered (message id %s)\n", id)
		return nil
	},
}

// waitForAck reads transport events until the server confirms the message
// identified by randomID, reports an error, or ctx expires.
func waitForAck(ctx context.Context, sock *privchat.Socket, randomID string) (string, error) {
	for {
		select {
		case ev := <-sock.Events():
			switch e := ev.(type) {
			case privchat.MessageReconciled:
				if e.PendingID == randomID {
					return e.ConfirmedID, nil
				}
			case privchat.ServerErrorReceived:
				return "", fmt.Errorf("server error %d: %s", e.Code, e.Message)
			}
		case <-ctx.Done():
			return "", fmt.Errorf("timed out waiting for delivery ack")
		}
	}
}
