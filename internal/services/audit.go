package services

import (
	"encoding/json"
	"log"
	"time"

	"github.com/stackgo/backend/internal/models"
)

type AuditEvent struct {
	Timestamp       time.Time `json:"timestamp"`
	EventType       string    `json:"event_type"`
	UserID          int64     `json:"user_id"`
	TransactionType string    `json:"transaction_type,omitempty"`
	Amount          int       `json:"amount,omitempty"`
	BalanceAfter    int       `json:"balance_after,omitempty"`
	Target          string    `json:"target,omitempty"`
	Status          string    `json:"status"`
	Details         any       `json:"details,omitempty"`
}

// AuditLogger writes one JSON line per reputation-affecting operation.
type AuditLogger struct{}

func NewAuditLogger() *AuditLogger {
	return &AuditLogger{}
}

func (a *AuditLogger) LogTransaction(txn *models.ReputationTransaction) {
	event := AuditEvent{
		Timestamp:       time.Now(),
		EventType:       "REPUTATION",
		UserID:          txn.UserID,
		TransactionType: txn.TransactionType,
		Amount:          txn.Amount,
		BalanceAfter:    txn.BalanceAfter,
		Target:          models.TargetRef{Kind: txn.TargetKind, ID: txn.TargetID}.String(),
		Status:          "COMMITTED",
	}
	a.log(event)
}

func (a *AuditLogger) LogRejection(userID int64, txType string, amount int, err error) {
	event := AuditEvent{
		Timestamp:       time.Now(),
		EventType:       "REPUTATION",
		UserID:          userID,
		TransactionType: txType,
		Amount:          amount,
		Status:          "REJECTED",
		Details:         map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *AuditLogger) log(event AuditEvent) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
