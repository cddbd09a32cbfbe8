package worker

import (
	"context"
	"log/slog"

	"evoting/internal/metrics"
)

// BallotEvent is emitted after a ballot is recorded. Handlers send it
// non-blocking; a full channel drops the event rather than delaying the vote.
type BallotEvent struct {
	MeetingID int64
	AccountID int64
	UserID    int64
}

// AuditWorker drains ballot events off the submission path, writing the audit
// log line and bumping the per-meeting counters.
type AuditWorker struct {
	Ch  <-chan BallotEvent
	log *slog.Logger
}

func NewAuditWorker(ch <-chan BallotEvent, log *slog.Logger) *AuditWorker {
	if log == nil {
		log = slog.Default()
	}
	return &AuditWorker{Ch: ch, log: log}
}

func (w *AuditWorker) Run(ctx context.Context) {
	w.log.Info("audit worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info("audit worker stopped")
			return
		case ev := <-w.Ch:
			metrics.IncBallotCast(ev.MeetingID)
			w.log.Info("ballot recorded",
				"meeting_id", ev.MeetingID,
				"account_id", ev.AccountID,
				"user_id", ev.UserID,
			)
		}
	}
}
