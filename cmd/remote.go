package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/siafu-sim/siafu/remote"
)

var (
	remoteAddr    string        // Address of the simulation's command listener
	remoteNoReply bool          // Send without waiting for a reply
	remoteTimeout time.Duration // Reply timeout
	remoteVerbose bool          // Log connection events
)

// remoteCmd sends one command line to a running simulation
var remoteCmd = &cobra.Command{
	Use:   "remote <command> [args...]",
	Short: "Send a command to a running simulation",
	Example: `  siafu remote time
  siafu remote getcontext Teresa,Pietro Position,Language
  siafu remote --no-reply move Postman Nowhere-1`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if remoteVerbose {
			level = zerolog.DebugLevel
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Str("app", "siafu-remote").Logger()

		c := remote.New(remoteAddr, remote.Options{ReplyTimeout: remoteTimeout, Logger: &logger})
		defer c.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), remoteTimeout+time.Second)
		defer cancel()
		reply, err := c.Do(ctx, strings.Join(args, " "), !remoteNoReply)
		if err != nil {
			return err
		}
		if !remoteNoReply {
			fmt.Fprintln(cmd.OutOrStdout(), reply)
		}
		return nil
	},
}

func init() {
	remoteCmd.Flags().StringVar(&remoteAddr, "addr", "localhost:4444", "Command listener address")
	remoteCmd.Flags().BoolVar(&remoteNoReply, "no-reply", false, "Do not wait for a reply")
	remoteCmd.Flags().DurationVar(&remoteTimeout, "timeout", 5*time.Second, "Reply timeout")
	remoteCmd.Flags().BoolVarP(&remoteVerbose, "verbose", "v", false, "Log connection events to stderr")

	rootCmd.AddCommand(remoteCmd)
}
