package handlers

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"memberflow/shared/models"
	"memberflow/shared/transfer"
)

// Notifier posts job progress to the requester, editing a single status
// message per job. It also tells contributors about pruned accounts.
type Notifier struct {
	bot    BotAPI
	logger *zap.Logger

	mu       sync.Mutex
	messages map[string]int
}

func NewNotifier(bot BotAPI, logger *zap.Logger) *Notifier {
	return &Notifier{
		bot:      bot,
		logger:   logger.Named("notifier"),
		messages: make(map[string]int),
	}
}

func (n *Notifier) Started(_ context.Context, job models.Job) {
	msg, err := n.bot.Send(tgbotapi.NewMessage(job.RequesterID, fmt.Sprintf(transferStartedMessage, job.SourceGroup, job.TargetGroup)))
	if err != nil {
		n.logger.Warn("error sending start notice", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	n.mu.Lock()
	n.messages[job.ID] = msg.MessageID
	n.mu.Unlock()
}

func (n *Notifier) Progress(_ context.Context, job models.Job, added, target int) {
	n.update(job, fmt.Sprintf(transferProgressMessage, job.SourceGroup, job.TargetGroup, added, target), false)
}

func (n *Notifier) Finished(_ context.Context, job models.Job, added int) {
	n.update(job, fmt.Sprintf(transferFinishedMessage, job.SourceGroup, job.TargetGroup, added), true)
}

func (n *Notifier) Failed(_ context.Context, job models.Job, reason string) {
	text := fmt.Sprintf(transferFailedMessage, job.SourceGroup, job.TargetGroup, reason)
	if reason == transfer.ReasonNoAccounts {
		text = noPoolAccountsMessage
	}
	if _, err := n.bot.Send(tgbotapi.NewMessage(job.RequesterID, text)); err != nil {
		n.logger.Warn("error sending failure notice", zap.String("job_id", job.ID), zap.Error(err))
	}
}

// AccountRemoved implements health.OwnerNotifier.
func (n *Notifier) AccountRemoved(_ context.Context, acc models.Account) error {
	_, err := n.bot.Send(tgbotapi.NewMessage(acc.ContributorID, fmt.Sprintf(invalidAccountNotice, acc.APIID)))
	return err
}

// update edits the job's status message, or sends a new one when the
// start notice never made it.
func (n *Notifier) update(job models.Job, text string, final bool) {
	n.mu.Lock()
	id, ok := n.messages[job.ID]
	if final {
		delete(n.messages, job.ID)
	}
	n.mu.Unlock()

	var c tgbotapi.Chattable = tgbotapi.NewMessage(job.RequesterID, text)
	if ok {
		c = tgbotapi.NewEditMessageText(job.RequesterID, id, text)
	}
	if _, err := n.bot.Send(c); err != nil {
		n.logger.Warn("error sending progress", zap.String("job_id", job.ID), zap.Error(err))
	}
}
