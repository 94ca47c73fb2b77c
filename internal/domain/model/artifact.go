package model

import (
	"fmt"
	"time"
)

// Artifact is a downloaded operation output persisted in local storage.
type Artifact struct {
	OperationID   string
	OperationType string
	FileName      string
	Path          string
	ContentType   string
	Size          int64
}

// DefaultArtifactName is used when the download response carries no usable file name.
func DefaultArtifactName(operationType string) string {
	return "downloadedAsset_" + operationType
}

// Outcome is how a single poll run ended.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeFailed   Outcome = "failed"
	OutcomeCanceled Outcome = "canceled"
	OutcomeTimedOut Outcome = "timed_out"
	OutcomeAborted  Outcome = "aborted"
	OutcomeError    Outcome = "error"
)

type PollResult struct {
	Operation Operation
	Outcome   Outcome
	Artifact  *Artifact
	Err       error
	Polls     int
}

// FileName returns the artifact name, or "" when the operation produced none.
func (r PollResult) FileName() string {
	if r.Outcome != OutcomeFinished || r.Artifact == nil {
		return ""
	}
	return r.Artifact.FileName
}

func (r PollResult) String() string {
	if name := r.FileName(); name != "" {
		return fmt.Sprintf("%s(%s): %s -> %s", r.Operation.Type, r.Operation.ID, r.Outcome, name)
	}
	return fmt.Sprintf("%s(%s): %s", r.Operation.Type, r.Operation.ID, r.Outcome)
}

// Slot is a named output position consumed by the viewer.
type Slot string

const (
	SlotGeometry  Slot = "geometry"
	SlotStructure Slot = "structure"
)

// SlotFor maps an operation type to its slot. Unrecognized types report ok=false.
func SlotFor(operationType string) (Slot, bool) {
	switch operationType {
	case OperationTypeGeometry:
		return SlotGeometry, true
	case OperationTypeStructure:
		return SlotStructure, true
	}
	return "", false
}

// ArtifactSlots maps slots to artifact file names. A missing key means no artifact.
type ArtifactSlots map[Slot]string

func (s ArtifactSlots) Get(slot Slot) (string, bool) {
	name, ok := s[slot]
	return name, ok && name != ""
}

// EventKind classifies an operation notification.
type EventKind string

const (
	EventStatusChanged EventKind = "status_changed"
	EventFinished      EventKind = "finished"
	EventFailed        EventKind = "failed"
	EventTimedOut      EventKind = "timed_out"
)

// OperationEvent is emitted by the poller as it observes an operation.
type OperationEvent struct {
	Kind          EventKind       `json:"kind"`
	AssetID       string          `json:"assetId"`
	OperationID   string          `json:"operationId"`
	OperationType string          `json:"operationType"`
	Previous      OperationStatus `json:"previous,omitempty"`
	Status        OperationStatus `json:"status"`
	FileName      string          `json:"fileName,omitempty"`
	At            time.Time       `json:"at"`
}
