package adapter

import (
	"context"

	"bimcloud-demo/internal/domain/model"
)

// StatusNotifier receives operation events. Implementations must be safe for concurrent use;
// events of one operation arrive in observation order.
type StatusNotifier interface {
	Notify(ctx context.Context, ev model.OperationEvent)
}
