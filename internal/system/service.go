// Package system provides the lifecycle contract and manager shared by every
// long-running component of the bridge engine: the HTTP server and the
// background drivers all implement Service and are started/stopped together.
package system

import "context"

// Service represents a lifecycle-managed component.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
