// Package delivery sends finished artifacts back to the requesting chat,
// with bounded retries and unconditional cleanup.
package delivery

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/italolelis/trackbot/internal/bot/telegram"
	"github.com/italolelis/trackbot/internal/logctx"
	"github.com/italolelis/trackbot/internal/pipeline"
	"github.com/italolelis/trackbot/internal/telemetry"
)

// Transport is the outbound side of the messaging platform.
type Transport interface {
	SendAudio(ctx context.Context, audio telegram.Audio) error
}

type Deliverer struct {
	transport Transport
	maxTries  uint
	delay     time.Duration
	telemetry *telemetry.Telemetry
}

func NewDeliverer(transport Transport, maxTries uint, delay time.Duration, tel *telemetry.Telemetry) *Deliverer {
	return &Deliverer{
		transport: transport,
		maxTries:  maxTries,
		delay:     delay,
		telemetry: tel,
	}
}

// Deliver sends the artifact's audio to the chat, retrying failed sends with
// a fixed delay. The artifact and its thumbnail are deleted on every
// outcome, success or not.
func (d *Deliverer) Deliver(ctx context.Context, chatID int64, artifact *pipeline.Artifact) error {
	logger := logctx.LoggerFromContext(ctx)

	defer artifact.Cleanup(ctx)

	audio := telegram.Audio{
		ChatID:        chatID,
		FilePath:      artifact.AudioPath,
		Title:         artifact.Info.Title,
		Performer:     artifact.Info.Artist,
		ThumbnailPath: artifact.ThumbnailPath,
		Duration:      artifact.Info.Duration,
	}

	send := func() (struct{}, error) {
		return struct{}{}, d.transport.SendAudio(ctx, audio)
	}

	_, err := backoff.Retry(ctx, send,
		backoff.WithBackOff(backoff.NewConstantBackOff(d.delay)),
		backoff.WithMaxTries(d.maxTries),
		backoff.WithNotify(func(err error, next time.Duration) {
			d.telemetry.RecordDeliveryRetry()
			logger.Warn("send attempt failed, retrying", "retry_in", next.String(), "err", err)
		}),
	)
	if err != nil {
		d.telemetry.RecordDelivery("error")

		return &pipeline.DeliveryError{Attempts: int(d.maxTries), Err: err}
	}

	d.telemetry.RecordDelivery("success")
	logger.Info("artifact delivered", "chat_id", chatID, "title", audio.Title)

	return nil
}
