// cmd/sblite-cli/realtime.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/markb/sblite-go/api"
	"github.com/markb/sblite-go/realtime"
)

var listenEvents []string

var listenCmd = &cobra.Command{
	Use:   "listen <channel> [channel...]",
	Short: "Join channels and print realtime events until interrupted",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		rt := client.Realtime
		defer rt.Disconnect()

		rt.OnJoin(func(p realtime.Presence) {
			fmt.Printf("[%s] + %s joined\n", p.Channel, p.Member)
		})
		rt.OnLeave(func(p realtime.Presence) {
			fmt.Printf("[%s] - %s left\n", p.Channel, p.Member)
		})
		rt.OnUpdate(func(p realtime.Presence) {
			fmt.Printf("[%s] ~ %s updated: %s\n", p.Channel, p.Member, string(p.Data))
		})
		rt.OnError(func(apiErr *api.Error) {
			fmt.Fprintf(os.Stderr, "error: %s\n", apiErr.Error())
		})
		if len(listenEvents) == 0 {
			listenEvents = []string{"message"}
		}
		for _, event := range listenEvents {
			rt.On(event, func(ev realtime.Event) {
				fmt.Printf("[%s] %s: %s\n", ev.Channel, ev.Name, string(ev.Payload))
			})
		}

		connected := make(chan string, 1)
		rt.OnConnect(func(connID string) {
			select {
			case connected <- connID:
			default:
			}
		})

		for _, channel := range args {
			if err := rt.Join(channel); err != nil {
				return err
			}
		}
		if err := rt.Connect(cmd.Context()); err != nil {
			return err
		}

		select {
		case connID := <-connected:
			fmt.Printf("Connected (%s), listening on %v\n", connID, args)
		case <-time.After(30 * time.Second):
			return fmt.Errorf("timed out waiting for connection")
		}

		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, os.Interrupt)
		<-interrupt
		return nil
	},
}

var sendCmd = &cobra.Command{
	Use:   "send <channel> <event> <payload-json>",
	Short: "Send a single event to a channel",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}
		rt := client.Realtime
		defer rt.Disconnect()

		var payload any
		if err := json.Unmarshal([]byte(args[2]), &payload); err != nil {
			// Not JSON; send as a plain string.
			payload = args[2]
		}

		sent := make(chan error, 1)
		rt.OnConnect(func(string) {
			sent <- rt.Send(args[0], args[1], payload)
		})
		if err := rt.Connect(cmd.Context()); err != nil {
			return err
		}

		select {
		case err := <-sent:
			return err
		case <-time.After(30 * time.Second):
			return fmt.Errorf("timed out waiting for connection")
		}
	},
}

func init() {
	listenCmd.Flags().StringSliceVar(&listenEvents, "event", nil, "event names to print (default: message)")
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(sendCmd)
}
