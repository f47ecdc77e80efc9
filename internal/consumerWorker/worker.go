package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"filmclub/internal/dto"
	"filmclub/internal/rabbit"
)

// Deliverer handles one decoded notification job.
type Deliverer interface {
	Deliver(ctx context.Context, msg dto.NotificationMessage) error
}

type Reader struct {
	consumer  rabbit.Consumer
	deliverer Deliverer
	done      chan struct{}
	cancel    context.CancelFunc
}

func NewReader(consumer rabbit.Consumer, deliverer Deliverer) *Reader {
	return &Reader{
		consumer:  consumer,
		deliverer: deliverer,
		done:      make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("notification reader started")

	go func() {
		defer close(r.done)

		if err := r.consumer.Consume(cctx, r.handle(cctx)); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("notification reader stopped by context")
	}()
}

// handle acks malformed payloads; only a failed delivery attempt that should
// be retried is returned to the consumer.
func (r *Reader) handle(ctx context.Context) func([]byte) error {
	return func(body []byte) error {
		var msg dto.NotificationMessage
		if err := json.Unmarshal(body, &msg); err != nil {
			zlog.Logger.Error().
				Err(err).
				Msgf("dropping malformed notification: %s", string(body))
			return nil
		}

		zlog.Logger.Info().
			Str("kind", msg.Kind).
			Str("meeting_id", msg.MeetingID.String()).
			Time("due_at", msg.DueAt).
			Msg("received notification job")

		if err := r.deliverer.Deliver(ctx, msg); err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("meeting_id", msg.MeetingID.String()).
				Msg("failed to process notification job")
			return err
		}
		return nil
	}
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
