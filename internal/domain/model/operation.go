package model

// OperationStatus is the lifecycle state of a remote operation as reported by the service.
type OperationStatus string

const (
	OperationStatusPending  OperationStatus = "Pending"
	OperationStatusStarted  OperationStatus = "Started"
	OperationStatusFinished OperationStatus = "Finished"
	OperationStatusFailed   OperationStatus = "Failed"
	OperationStatusCanceled OperationStatus = "Canceled"
)

// IsTerminal reports whether no further transition is expected. Unknown values are non-terminal.
func (s OperationStatus) IsTerminal() bool {
	switch s {
	case OperationStatusFinished, OperationStatusFailed, OperationStatusCanceled:
		return true
	}
	return false
}

// IsFailure is true for the terminal states that produce no artifact.
func (s OperationStatus) IsFailure() bool {
	return s == OperationStatusFailed || s == OperationStatusCanceled
}

// Well-known conversion types.
const (
	OperationTypeGeometry  = "WexbimGeometryConversion"
	OperationTypeStructure = "StructureConversion"
)

type Operation struct {
	ID     string          `json:"id"`
	Type   string          `json:"type"`
	Status OperationStatus `json:"status"`
}

// DownloadDescriptor authorizes a single retrieval of a finished operation's output.
type DownloadDescriptor struct {
	DownloadLink string `json:"downloadLink"`
}
