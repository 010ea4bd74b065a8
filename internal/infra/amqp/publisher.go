// Package amqp announces recorded quiz attempts on a RabbitMQ topic exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-session-service/internal/domain"

	"github.com/rabbitmq/amqp091-go"
)

const (
	DefaultExchange   = "quiz.events"
	CompletionRouting = "quiz.attempt.completed"
	publishTimeout    = 5 * time.Second
)

// CompletionEvent is the body published for every recorded attempt.
type CompletionEvent struct {
	EventType      string        `json:"eventType"`
	AttemptID      string        `json:"attemptId"`
	QuizID         string        `json:"quizId"`
	UserID         string        `json:"userId"`
	ElapsedSeconds int           `json:"elapsedSeconds"`
	Result         domain.Result `json:"result"`
	CompletedAt    time.Time     `json:"completedAt"`
}

// Publisher is a no-op when built without a broker URL.
type Publisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex
	channel  *amqp091.Channel
	exchange string
	enabled  bool
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		log.Println("amqp url is empty, completion events are disabled")
		return &Publisher{}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	err = channel.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &Publisher{conn: conn, channel: channel, exchange: exchange, enabled: true}, nil
}

// PublishCompletion sends one persistent message per attempt. The attempt id
// is the message id so consumers can drop redeliveries.
func (p *Publisher) PublishCompletion(ctx context.Context, attempt domain.Attempt) error {
	if !p.enabled {
		return nil
	}

	body, err := json.Marshal(newCompletionEvent(attempt))
	if err != nil {
		return fmt.Errorf("marshal completion: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange,
		CompletionRouting,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    attempt.ID,
			Timestamp:    attempt.CompletedAt,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish completion %s: %w", attempt.ID, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if err := p.channel.Close(); err != nil {
		log.Printf("close rabbitmq channel: %v", err)
	}
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("close rabbitmq connection: %w", err)
	}
	return nil
}

func newCompletionEvent(a domain.Attempt) CompletionEvent {
	return CompletionEvent{
		EventType:      CompletionRouting,
		AttemptID:      a.ID,
		QuizID:         a.QuizID,
		UserID:         a.UserID,
		ElapsedSeconds: a.ElapsedSeconds,
		Result:         a.Result,
		CompletedAt:    a.CompletedAt,
	}
}
