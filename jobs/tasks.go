package jobs

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerIntegrity re-derives balances for one store and reports drift.
	TaskLedgerIntegrity = "ledger:integrity"
)

var errStoreRequired = errors.New("jobs: store id required")

// LedgerIntegrityPayload names the store whose ledger is checked.
type LedgerIntegrityPayload struct {
	StoreID string `json:"store_id"`
}

// NewLedgerIntegrityTask constructs an Asynq task for the given store.
func NewLedgerIntegrityTask(storeID string) (*asynq.Task, error) {
	storeID = strings.TrimSpace(storeID)
	if storeID == "" {
		return nil, errStoreRequired
	}
	data, err := json.Marshal(LedgerIntegrityPayload{StoreID: storeID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data, asynq.Queue(QueueDefault), asynq.MaxRetry(3)), nil
}

func decodeIntegrityPayload(t *asynq.Task) (LedgerIntegrityPayload, error) {
	var payload LedgerIntegrityPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, err
	}
	if strings.TrimSpace(payload.StoreID) == "" {
		return payload, errStoreRequired
	}
	return payload, nil
}
