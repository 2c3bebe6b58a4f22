package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	natspkg "github.com/brojonat/lpctl/service/nats"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/urfave/cli/v2"
)

// subscribeCommand streams operation events from JetStream.
func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Stream operation events, optionally for one pool",
		ArgsUsage: "[pool_id]",
		Description: `Subscribe to the operation events published to NATS JetStream.

Events are published to the subject: liquidity.{pool_id}
Without a pool id every pool's events are shown.

Example:
  lpctl events subscribe 58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2 --json`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "durable",
				Aliases: []string{"d"},
				Usage:   "Create a durable consumer (survives restarts)",
			},
			&cli.StringFlag{
				Name:  "consumer-name",
				Usage: "Consumer name (required for durable)",
				Value: "lpctl-cli",
			},
		},
		Action: func(c *cli.Context) error {
			subject := natspkg.StreamSubjects
			if c.NArg() > 0 {
				subject = natspkg.SubjectForPool(c.Args().First())
			}
			return streamEvents(c.String("nats-url"), subject, c.Bool("durable"), c.String("consumer-name"), c.Bool("json"))
		},
	}
}

func streamEvents(natsURL, subject string, durable bool, consumerName string, jsonOutput bool) error {
	nc, err := natspkg.Connect(natsURL, "lpctl-cli")
	if err != nil {
		return err
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if !jsonOutput {
		fmt.Printf("Subscribing to: %s\n", subject)
		fmt.Printf("   NATS: %s\n", natsURL)
		if durable {
			fmt.Printf("   Consumer: %s (durable)\n", consumerName)
		}
		fmt.Printf("\nWaiting for operations... (Ctrl-C to exit)\n\n")
	}

	consumerConfig := jetstream.ConsumerConfig{
		FilterSubject: subject,
		AckPolicy:     jetstream.AckExplicitPolicy,
	}
	if durable {
		consumerConfig.Durable = consumerName
		consumerConfig.Name = consumerName
	}

	cons, err := js.CreateOrUpdateConsumer(context.Background(), natspkg.StreamName, consumerConfig)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	msgChan := make(chan jetstream.Msg, 10)
	consumeCtx, err := cons.Consume(func(msg jetstream.Msg) {
		msgChan <- msg
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	count := 0
	for {
		select {
		case msg := <-msgChan:
			var event natspkg.OperationEvent
			if err := json.Unmarshal(msg.Data(), &event); err != nil {
				if !jsonOutput {
					fmt.Fprintf(os.Stderr, "Error parsing event: %v\n", err)
				}
				msg.Ack()
				continue
			}
			count++

			if jsonOutput {
				data, _ := json.Marshal(event)
				fmt.Println(string(data))
			} else {
				printEvent(os.Stdout, count, &event)
			}
			msg.Ack()

		case <-sigChan:
			if !jsonOutput {
				fmt.Printf("\nReceived %d operations\n", count)
			}
			return nil
		}
	}
}

func printEvent(w io.Writer, n int, event *natspkg.OperationEvent) {
	fmt.Fprintf(w, "-----------------------------------------------------\n")
	fmt.Fprintf(w, "Operation #%d\n", n)
	fmt.Fprintf(w, "-----------------------------------------------------\n")
	fmt.Fprintf(w, "ID:         %s\n", event.OperationID)
	fmt.Fprintf(w, "Type:       %s\n", event.Type)
	fmt.Fprintf(w, "Pool:       %s\n", event.PoolID)
	if event.AddAmount > 0 {
		fmt.Fprintf(w, "Add:        %d\n", event.AddAmount)
	}
	if event.RemoveAmount > 0 {
		fmt.Fprintf(w, "Remove:     %d\n", event.RemoveAmount)
	}
	fmt.Fprintf(w, "Outcome:    %s\n", event.Outcome)
	if event.Signature != "" {
		fmt.Fprintf(w, "Signature:  %s\n", event.Signature)
	}
	if event.SimulationError != "" {
		fmt.Fprintf(w, "Simulation: %s\n", event.SimulationError)
	}
	if event.SubmitError != "" {
		fmt.Fprintf(w, "Submit:     %s\n", event.SubmitError)
	}
	fmt.Fprintf(w, "Published:  %s\n\n", event.PublishedAt.Format(time.RFC3339))
}
