package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"salesbridge/internal/database"
	"salesbridge/internal/models"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

type processingUpdate struct {
	providerMessageID string
	status            models.ProcessingStatus
	reply             *string
}

type outcomeUpdate struct {
	id      int64
	outcome models.WebhookOutcome
	errMsg  *string
}

// fakeDB is an in-memory stand-in for the database satisfying every
// store interface the service layer consumes.
type fakeDB struct {
	mu sync.Mutex

	messages       map[string]*models.Message
	saveMessageErr error

	processing          []processingUpdate
	updateProcessingErr error

	statuses      []models.MessageStatus
	saveStatusErr error

	webhookLogs map[int64]*models.WebhookLog
	outcomes    []outcomeUpdate
	nextLogID   int64
	saveLogErr  error

	conversations map[string]*models.Conversation
	upsertErr     error
	setStatusErr  error

	transactions         map[string]*models.Transaction
	saveTransactionErr   error
	getTransactionErr    error
	updateTransactionErr error

	history    []models.Message
	historyErr error

	cleanupCalls []int
	cleanupErr   error
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		messages:      make(map[string]*models.Message),
		webhookLogs:   make(map[int64]*models.WebhookLog),
		conversations: make(map[string]*models.Conversation),
		transactions:  make(map[string]*models.Transaction),
	}
}

func (f *fakeDB) SaveMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveMessageErr != nil {
		return f.saveMessageErr
	}
	if _, exists := f.messages[msg.ProviderMessageID]; exists {
		return database.ErrDuplicateMessage
	}
	stored := *msg
	f.messages[msg.ProviderMessageID] = &stored
	return nil
}

func (f *fakeDB) HasMessage(ctx context.Context, providerMessageID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.messages[providerMessageID]
	return exists, nil
}

func (f *fakeDB) UpdateMessageProcessing(ctx context.Context, providerMessageID string, status models.ProcessingStatus, agentReply *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateProcessingErr != nil {
		return f.updateProcessingErr
	}
	f.processing = append(f.processing, processingUpdate{providerMessageID, status, agentReply})
	return nil
}

func (f *fakeDB) SaveMessageStatus(ctx context.Context, status *models.MessageStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveStatusErr != nil {
		return f.saveStatusErr
	}
	f.statuses = append(f.statuses, *status)
	return nil
}

func (f *fakeDB) SaveWebhookLog(ctx context.Context, log *models.WebhookLog) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveLogErr != nil {
		return 0, f.saveLogErr
	}
	f.nextLogID++
	stored := *log
	stored.ID = f.nextLogID
	f.webhookLogs[f.nextLogID] = &stored
	return f.nextLogID, nil
}

func (f *fakeDB) UpdateWebhookLogOutcome(ctx context.Context, id int64, outcome models.WebhookOutcome, errorMessage *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcomeUpdate{id, outcome, errorMessage})
	return nil
}

func (f *fakeDB) UpsertConversation(ctx context.Context, phone, lastMessage string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	msg := lastMessage
	ts := at
	f.conversations[phone] = &models.Conversation{
		PhoneNumber:   phone,
		Status:        models.ConversationStatusActive,
		LastMessage:   &msg,
		LastMessageAt: &ts,
	}
	return nil
}

func (f *fakeDB) GetConversation(ctx context.Context, phone string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[phone], nil
}

func (f *fakeDB) ListConversations(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Conversation
	for _, c := range f.conversations {
		if status == "" || c.Status == status {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeDB) SetConversationStatus(ctx context.Context, phone string, status models.ConversationStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setStatusErr != nil {
		return f.setStatusErr
	}
	if c, ok := f.conversations[phone]; ok {
		c.Status = status
	}
	return nil
}

func (f *fakeDB) SaveTransaction(ctx context.Context, tx *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveTransactionErr != nil {
		return f.saveTransactionErr
	}
	stored := *tx
	f.transactions[tx.AsaasID] = &stored
	return nil
}

func (f *fakeDB) GetTransactionByProviderID(ctx context.Context, asaasID string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getTransactionErr != nil {
		return nil, f.getTransactionErr
	}
	tx, ok := f.transactions[asaasID]
	if !ok {
		return nil, nil
	}
	stored := *tx
	return &stored, nil
}

func (f *fakeDB) UpdateTransactionStatus(ctx context.Context, asaasID string, status models.TransactionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateTransactionErr != nil {
		return f.updateTransactionErr
	}
	tx, ok := f.transactions[asaasID]
	if !ok {
		return fmt.Errorf("no transaction with asaas id: %s", asaasID)
	}
	tx.Status = status
	return nil
}

func (f *fakeDB) GetRecentMessages(ctx context.Context, phone string, limit int) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history, nil
}

func (f *fakeDB) CleanupOldRecords(ctx context.Context, retentionDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleanupCalls = append(f.cleanupCalls, retentionDays)
	return f.cleanupErr
}

func (f *fakeDB) messagesFrom(sender string) []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, msg := range f.messages {
		if msg.FromPhone == sender {
			out = append(out, *msg)
		}
	}
	return out
}

func (f *fakeDB) lastOutcome() *outcomeUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outcomes) == 0 {
		return nil
	}
	out := f.outcomes[len(f.outcomes)-1]
	return &out
}

func (f *fakeDB) lastProcessing() *processingUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.processing) == 0 {
		return nil
	}
	out := f.processing[len(f.processing)-1]
	return &out
}

type sentText struct {
	to   string
	body string
}

type fakeSender struct {
	mu         sync.Mutex
	configured bool
	providerID string
	sendErr    error
	sent       []sentText
}

func (f *fakeSender) Configured() bool {
	return f.configured
}

func (f *fakeSender) SendText(ctx context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, sentText{to, body})
	return f.providerID, nil
}

func (f *fakeSender) sentMessages() []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentText, len(f.sent))
	copy(out, f.sent)
	return out
}

// syncDispatcher runs jobs on the caller's goroutine so tests can
// assert on the outcome right after dispatching.
type syncDispatcher struct {
	logger *logrus.Logger
}

func (d *syncDispatcher) Dispatch(name string, job Job) {
	if err := job(context.Background()); err != nil {
		d.logger.WithError(err).WithField(LogFieldOperation, name).Error("Job failed")
	}
}

func (d *syncDispatcher) Shutdown() {}

type agentCall struct {
	sessionID string
	text      string
	messageID string
}

type fakeAgent struct {
	mu     sync.Mutex
	result AgentResult
	calls  []agentCall
}

func (f *fakeAgent) Reply(ctx context.Context, sessionID, text, messageID string) AgentResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, agentCall{sessionID, text, messageID})
	return f.result
}

func (f *fakeAgent) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}
