package ingestion

import (
	"ArtistExchange/internal/observability"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

const (
	CommandStream = "EXCHANGE_COMMANDS"
	EventStream   = "EXCHANGE_EVENTS"
	PayoutStream  = "EXCHANGE_PAYOUTS"
)

// NATSSubscriber subscribes to JetStream command subjects and feeds raw
// commands to the dispatcher via cmdChan.
type NATSSubscriber struct {
	js        jetstream.JetStream
	cmdChan   chan<- RawCommand
	consumers []jetstream.ConsumeContext
	logger    zerolog.Logger
}

// RawCommand is the unparsed command from NATS, ready for the dispatcher
// to validate and convert into a typed Command.
type RawCommand struct {
	Subject   string
	Command   string
	Data      []byte
	Timestamp time.Time
	AckFunc   func() // Call to ACK the NATS message after processing
	NakFunc   func() // Call to NAK on failure (will be redelivered)
}

// SubjectConfig maps a NATS subject to a command.
type SubjectConfig struct {
	Subject      string
	Command      string
	ConsumerName string
	StreamName   string
}

// DefaultSubjects returns one durable consumer per command; each command has
// its own subject so producers and consumers scale independently.
func DefaultSubjects() []SubjectConfig {
	commands := []string{
		"create_token", "transfer", "approve", "transfer_from",
		"deposit", "withdraw",
		"add_liquidity", "buy_tokens", "sell_tokens",
		"create_artist", "buy_shares", "sell_shares",
	}
	out := make([]SubjectConfig, 0, len(commands))
	for _, c := range commands {
		out = append(out, SubjectConfig{
			Subject:      "exchange.commands." + c + ".>",
			Command:      c,
			ConsumerName: "exchange-" + c,
			StreamName:   CommandStream,
		})
	}
	return out
}

func NewNATSSubscriber(js jetstream.JetStream, cmdChan chan<- RawCommand) *NATSSubscriber {
	return &NATSSubscriber{
		js:      js,
		cmdChan: cmdChan,
		logger:  observability.NewLogger("ingestion"),
	}
}

// Subscribe creates JetStream consumers for all configured subjects.
// Consumers use explicit ACK, max_deliver=5, ack_wait=30s.
func (ns *NATSSubscriber) Subscribe(ctx context.Context, subjects []SubjectConfig) error {
	for _, cfg := range subjects {
		consumer, err := ns.js.CreateOrUpdateConsumer(ctx, cfg.StreamName, jetstream.ConsumerConfig{
			Durable:       cfg.ConsumerName,
			FilterSubject: cfg.Subject,
			AckPolicy:     jetstream.AckExplicitPolicy,
			AckWait:       30 * time.Second,
			MaxDeliver:    5,
			DeliverPolicy: jetstream.DeliverAllPolicy,
		})
		if err != nil {
			return fmt.Errorf("create consumer %s: %w", cfg.ConsumerName, err)
		}

		command := cfg.Command
		consumerContext, err := consumer.Consume(func(msg jetstream.Msg) {
			raw := RawCommand{
				Subject:   msg.Subject(),
				Command:   command,
				Data:      msg.Data(),
				Timestamp: time.Now(),
				AckFunc:   func() { _ = msg.Ack() },
				NakFunc:   func() { _ = msg.Nak() },
			}

			select {
			case ns.cmdChan <- raw:
			case <-ctx.Done():
				_ = msg.Nak()
			}
		})
		if err != nil {
			return fmt.Errorf("consume %s: %w", cfg.ConsumerName, err)
		}

		ns.consumers = append(ns.consumers, consumerContext)
		ns.logger.Info().Str("subject", cfg.Subject).Str("consumer", cfg.ConsumerName).Msg("subscribed")
	}

	return nil
}

// EnsureStreams creates the command, event and payout streams if they don't
// exist. Streams use FileStorage, retention=Limits, max_age=72h.
func EnsureStreams(ctx context.Context, js jetstream.JetStream) error {
	streams := []jetstream.StreamConfig{
		{
			Name:      CommandStream,
			Subjects:  []string{"exchange.commands.>"},
			Storage:   jetstream.FileStorage,
			Retention: jetstream.LimitsPolicy,
			MaxAge:    72 * time.Hour,
			Replicas:  1,
		},
		{
			Name:       EventStream,
			Subjects:   []string{"exchange.events.>"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.LimitsPolicy,
			MaxAge:     72 * time.Hour,
			Replicas:   1,
			Duplicates: 10 * time.Minute,
		},
		{
			Name:       PayoutStream,
			Subjects:   []string{"exchange.payouts.>"},
			Storage:    jetstream.FileStorage,
			Retention:  jetstream.WorkQueuePolicy,
			MaxAge:     72 * time.Hour,
			Replicas:   1,
			Duplicates: 10 * time.Minute,
		},
	}

	logger := observability.NewLogger("ingestion")
	for _, cfg := range streams {
		if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", cfg.Name, err)
		}
		logger.Info().Str("stream", cfg.Name).Msg("ensured stream")
	}

	return nil
}

// Stop gracefully stops all consumers.
func (ns *NATSSubscriber) Stop() {
	for _, cc := range ns.consumers {
		cc.Stop()
	}
	ns.logger.Info().Msg("NATS subscribers stopped")
}

// ConnectNATS establishes a NATS connection and returns a JetStream context.
func ConnectNATS(url string) (*nats.Conn, jetstream.JetStream, error) {
	logger := observability.NewLogger("ingestion")
	nc, err := nats.Connect(url,
		nats.Name("artist-exchange"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info().Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("jetstream: %w", err)
	}

	return nc, js, nil
}
