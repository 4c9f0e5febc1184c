package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

// ConsumerMessage запускает обработку очереди queueName. Сообщение
// подтверждается при успехе handler и возвращается в очередь при ошибке.
// Одновременно обрабатывается не больше parallel сообщений.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string,
	parallel int, handler func(context.Context, []byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if parallel < 1 {
		parallel = 1
	}
	sem := make(chan struct{}, parallel)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					handle(ctx, log, d, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Acknowledger подтверждение доставки; выделено для тестов.
type Acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

func handle(ctx context.Context, log *slog.Logger, d amqp.Delivery, handler func(context.Context, []byte) error) {
	settle(ctx, log, d.Body, d.Redelivered, deliveryAck{d}, handler)
}

type deliveryAck struct{ d amqp.Delivery }

func (a deliveryAck) Ack(multiple bool) error { return a.d.Ack(multiple) }
func (a deliveryAck) Nack(multiple, requeue bool) error { return a.d.Nack(multiple, requeue) }

// settle вызывает handler и подтверждает сообщение. Повторно доставленное
// сообщение с ошибкой отбрасывается, чтобы не зациклиться.
func settle(ctx context.Context, log *slog.Logger, body []byte, redelivered bool, ack Acknowledger,
	handler func(context.Context, []byte) error) {
	if err := handler(ctx, body); err != nil {
		requeue := !redelivered
		log.Warn("message handling failed", sl.Err(err), slog.Bool("requeue", requeue))
		if nackErr := ack.Nack(false, requeue); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if ackErr := ack.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
