// Package kafka moves copy signals and executed transactions over Kafka.
package kafka

import (
	"encoding/json"
	"fmt"
	"strings"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/models"
)

// TransactionEvent is the message published for each executed trade.
type TransactionEvent struct {
	UserID      string             `json:"user_id"`
	Transaction models.Transaction `json:"transaction"`
}

// DecodeSignal parses a JSON copy signal. Price and quantity are checked by
// the router; only fields needed to route the message are required here.
func DecodeSignal(data []byte) (models.CopySignal, error) {
	var sig models.CopySignal
	if err := json.Unmarshal(data, &sig); err != nil {
		return models.CopySignal{}, fmt.Errorf("decode signal: %w", err)
	}
	sig.ExpertID = strings.TrimSpace(sig.ExpertID)
	if sig.ExpertID == "" {
		return models.CopySignal{}, apperrors.NewValidationError("expert_id", sig.ExpertID, "expert id is required")
	}
	if !sig.Action.Valid() {
		return models.CopySignal{}, apperrors.Wrapf(apperrors.ErrInvalidAction, "action %q", sig.Action)
	}
	return sig, nil
}

// EncodeSignal is the inverse of DecodeSignal.
func EncodeSignal(sig models.CopySignal) ([]byte, error) {
	return json.Marshal(sig)
}

// EncodeTransaction builds the transaction event payload.
func EncodeTransaction(userID string, txn models.Transaction) ([]byte, error) {
	return json.Marshal(TransactionEvent{UserID: userID, Transaction: txn})
}

// DecodeTransaction parses a transaction event.
func DecodeTransaction(data []byte) (TransactionEvent, error) {
	var ev TransactionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return TransactionEvent{}, fmt.Errorf("decode transaction event: %w", err)
	}
	return ev, nil
}
