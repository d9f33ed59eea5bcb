// Package bot routes inbound Telegram updates to the download pipeline and
// the bookkeeping commands.
package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/italolelis/trackbot/internal/bot/telegram"
	"github.com/italolelis/trackbot/internal/ledger"
	"github.com/italolelis/trackbot/internal/logctx"
	"github.com/italolelis/trackbot/internal/pipeline"
	"github.com/italolelis/trackbot/internal/service"
	"github.com/italolelis/trackbot/internal/telemetry"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Transport is the messaging-platform client the router talks through.
type Transport interface {
	GetUpdates(ctx context.Context, offset int64, pollTimeout time.Duration) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string) (telegram.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Retriever runs the retrieval pipeline for one supported URL.
type Retriever interface {
	Retrieve(ctx context.Context, rawURL string, svc service.Service) (*pipeline.Artifact, error)
}

// Deliverer hands a finished artifact to the chat and cleans it up.
type Deliverer interface {
	Deliver(ctx context.Context, chatID int64, artifact *pipeline.Artifact) error
}

const pollTimeout = 30 * time.Second

type Router struct {
	transport Transport
	store     ledger.Store
	retriever Retriever
	deliverer Deliverer
	telemetry *telemetry.Telemetry

	// ownerID gates /stats; zero means ungated.
	ownerID int64

	// sem bounds concurrent extractions; saturation is rejected, not queued.
	sem *semaphore.Weighted

	cooldown time.Duration
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
}

func NewRouter(
	transport Transport,
	store ledger.Store,
	retriever Retriever,
	deliverer Deliverer,
	tel *telemetry.Telemetry,
	ownerID int64,
	maxParallel int,
	cooldown time.Duration,
) *Router {
	return &Router{
		transport: transport,
		store:     store,
		retriever: retriever,
		deliverer: deliverer,
		telemetry: tel,
		ownerID:   ownerID,
		sem:       semaphore.NewWeighted(int64(maxParallel)),
		cooldown:  cooldown,
		limiters:  make(map[int64]*rate.Limiter),
	}
}

// Run long-polls for updates until the context is cancelled. Each update is
// handled on its own goroutine; handler panics and errors never take the
// poll loop down.
func (r *Router) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	logger.Info("waiting for messages...")

	var offset int64

	for {
		select {
		case <-ctx.Done():
			logger.Info("router shutting down")

			return ctx.Err()
		default:
		}

		updates, err := r.transport.GetUpdates(ctx, offset, pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}

			logger.Error("failed to get updates", "err", err)
			time.Sleep(time.Second)

			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}

			go r.handleUpdate(ctx, update)
		}
	}
}

func (r *Router) handleUpdate(ctx context.Context, update telegram.Update) {
	logger := logctx.LoggerFromContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("handler panic",
				"update_id", update.UpdateID,
				"panic", rec,
				"stack", string(debug.Stack()))
		}
	}()

	if update.Message == nil || update.Message.From == nil {
		return
	}

	text := strings.TrimSpace(update.Message.Text)
	if text == "" {
		return
	}

	msg := update.Message
	logger = logger.With("chat_id", msg.Chat.ID, "user_id", msg.From.ID)
	ctx = logctx.WithLogger(ctx, logger)

	switch {
	case text == "/start":
		r.reply(ctx, msg.Chat.ID, welcomeText())
	case text == "/help":
		r.reply(ctx, msg.Chat.ID, helpText())
	case text == "/stats":
		r.handleStats(ctx, msg)
	default:
		r.handleURL(ctx, msg, text)
	}
}

func (r *Router) handleStats(ctx context.Context, msg *telegram.Message) {
	logger := logctx.LoggerFromContext(ctx)

	if r.ownerID != 0 && msg.From.ID != r.ownerID {
		logger.Warn("stats denied for non-owner")
		r.reply(ctx, msg.Chat.ID, accessDeniedText)

		return
	}

	stats, err := r.store.Load(ctx)
	if err != nil {
		logger.Error("failed to load ledger", "err", err)
		r.reply(ctx, msg.Chat.ID, "❌ Failed to load statistics.")

		return
	}

	r.reply(ctx, msg.Chat.ID, stats.Summary())
}

func (r *Router) handleURL(ctx context.Context, msg *telegram.Message, url string) {
	logger := logctx.LoggerFromContext(ctx)

	if !r.allow(msg.From.ID) {
		r.reply(ctx, msg.Chat.ID, cooldownText)

		return
	}

	svc, ok := service.Classify(url)
	if !ok {
		r.reply(ctx, msg.Chat.ID, unsupportedText())

		return
	}

	logger = logger.With("service", svc.DisplayName)
	ctx = logctx.WithLogger(ctx, logger)

	// Counted on acceptance, like every revision of the bot so far; a failed
	// download still counts as usage. Ledger trouble is logged, never shown.
	if err := r.store.RecordDownload(ctx, msg.From.ID, msg.From.Username); err != nil {
		logger.Error("failed to record download", "err", err)
	}

	if !r.sem.TryAcquire(1) {
		logger.Warn("worker pool saturated, rejecting request")
		r.reply(ctx, msg.Chat.ID, busyText)

		return
	}
	defer r.sem.Release(1)

	if err := r.transport.SendChatAction(ctx, msg.Chat.ID, telegram.ActionUploadVoice); err != nil {
		logger.Warn("failed to send chat action", "err", err)
	}

	statusText := statusDownloading
	if svc.NeedsSearch {
		statusText = statusSearching
	}

	status, err := r.transport.SendMessage(ctx, msg.Chat.ID, statusText)
	if err != nil {
		logger.Warn("failed to send status message", "err", err)
	} else {
		// The transient status message goes away on every exit path.
		defer func() {
			if err := r.transport.DeleteMessage(ctx, msg.Chat.ID, status.MessageID); err != nil {
				logger.Warn("failed to delete status message", "err", err)
			}
		}()
	}

	r.telemetry.IncrementActiveDownloads()
	defer r.telemetry.DecrementActiveDownloads()

	start := time.Now()

	artifact, err := r.retriever.Retrieve(ctx, url, svc)
	if err != nil {
		r.telemetry.RecordDownload(svc.DisplayName, "error", time.Since(start))
		logger.Error("retrieval failed", "err", err)
		r.reply(ctx, msg.Chat.ID, errorText(err))

		return
	}

	r.telemetry.RecordDownload(svc.DisplayName, "success", time.Since(start))

	if err := r.deliverer.Deliver(ctx, msg.Chat.ID, artifact); err != nil {
		logger.Error("delivery failed", "err", err)
		r.reply(ctx, msg.Chat.ID, errorText(err))
	}
}

// allow enforces the per-user cooldown between requests.
func (r *Router) allow(userID int64) bool {
	if r.cooldown <= 0 {
		return true
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	limiter, ok := r.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(r.cooldown), 1)
		r.limiters[userID] = limiter
	}

	return limiter.Allow()
}

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	logger := logctx.LoggerFromContext(ctx)

	if _, err := r.transport.SendMessage(ctx, chatID, text); err != nil {
		logger.Error("failed to send reply", "err", err)
	}
}
