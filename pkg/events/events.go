package events

import (
	"context"
	"strings"
	"time"

	"github.com/Layr-Labs/eigenx-account-validators/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type EventType string

const (
	EventTypeSignerTransferred EventType = "signer_transferred"
	EventTypeOwnershipUpdated  EventType = "ownership_updated"
)

// Event is a state change notification emitted by a validation module.
type Event interface {
	Type() EventType
	// PartitionKey groups events of one account so consumers see them in order.
	PartitionKey() string
}

// SignerTransferred is emitted when a single-signer entity changes signer. A zero
// PreviousSigner means the entity had no signer; a zero NewSigner means it was cleared.
type SignerTransferred struct {
	Account        common.Address `json:"account"`
	EntityId       types.EntityId `json:"entityId"`
	PreviousSigner common.Address `json:"previousSigner"`
	NewSigner      common.Address `json:"newSigner"`
}

func (e *SignerTransferred) Type() EventType      { return EventTypeSignerTransferred }
func (e *SignerTransferred) PartitionKey() string { return strings.ToLower(e.Account.Hex()) }

// OwnershipUpdated is emitted after a multisig entity's owners or threshold change.
type OwnershipUpdated struct {
	Account       common.Address   `json:"account"`
	EntityId      types.EntityId   `json:"entityId"`
	AddedOwners   []types.Owner    `json:"addedOwners"`
	RemovedOwners []common.Address `json:"removedOwners"`
	Threshold     uint64           `json:"threshold"`
}

func (e *OwnershipUpdated) Type() EventType      { return EventTypeOwnershipUpdated }
func (e *OwnershipUpdated) PartitionKey() string { return strings.ToLower(e.Account.Hex()) }

// Envelope is the wire form of an event.
type Envelope struct {
	Type      EventType `json:"type"`
	Timestamp int64     `json:"timestamp"`
	Payload   Event     `json:"payload"`
}

func NewEnvelope(e Event) *Envelope {
	return &Envelope{
		Type:      e.Type(),
		Timestamp: time.Now().Unix(),
		Payload:   e,
	}
}

// IEventSink delivers events. Publish is called after the state change is persisted.
type IEventSink interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
