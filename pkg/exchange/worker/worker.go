package worker

import (
	"context"
	"encoding/json"
	"log"

	"github.com/joripage/clob-engine/pkg/exchange/model"
	"github.com/joripage/clob-engine/pkg/exchange/repo"
	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
)

// Worker drains the settlement stream and persists fill events. It runs
// outside the matching path so a slow database never blocks the engine.
type Worker struct {
	fillEvent repo.IFillEvent
}

func NewWorker(repo repo.IRepo) *Worker {
	return &Worker{
		fillEvent: repo.FillEvent(),
	}
}

func (w *Worker) StartConsumer(ctx context.Context, js nats.JetStreamContext, subject, durable string) error {
	// Create durable consumer
	cons, err := js.PullSubscribe(subject, durable)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msgs, err := cons.Fetch(10, nats.Context(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nats.ErrTimeout {
				log.Println("Fetch error:", err)
			}
			continue
		}

		for _, msg := range msgs {
			var rec model.FillEventRecord
			if err := json.Unmarshal(msg.Data, &rec); err != nil {
				log.Println("unmarshal err", err)
				_ = msg.Ack()
				continue
			}
			if err := w.handleEvent(&rec); err != nil {
				log.Println("handleEvent err", err)
				continue
			}
			_ = msg.Ack()
		}
	}
}

func (w *Worker) handleEvent(rec *model.FillEventRecord) error {
	_, err := w.fillEvent.Create(context.Background(), rec)
	return err
}
