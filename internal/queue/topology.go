package queue

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DeadLetterName is the queue that receives rejected deliveries of name.
func DeadLetterName(name string) string { return name + ".dead" }

// Declare creates the durable work queue and its dead-letter queue. It is
// safe to call from both publishers and consumers.
func Declare(ch *amqp.Channel, name string) error {
	if _, err := ch.QueueDeclare(DeadLetterName(name), true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", DeadLetterName(name), err)
	}
	args := amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": DeadLetterName(name),
	}
	if _, err := ch.QueueDeclare(name, true, false, false, false, args); err != nil {
		return fmt.Errorf("declare %s: %w", name, err)
	}
	return nil
}
