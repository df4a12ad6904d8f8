// Package helper is what the orchestration layer calls to provision and
// inspect Scalaris nodes.
package helper

import (
	"context"
	"errors"

	"github.com/forbearing/kvboot/descriptor"
	"github.com/forbearing/kvboot/status"
	"github.com/forbearing/kvboot/types"
)

// ErrNotImplemented is returned by operations the helper advertises but
// does not support.
var ErrNotImplemented = errors.New("not yet implemented")

var _ types.Helper = (*Helper)(nil)

// Helper couples a descriptor builder with a status client. The two share
// no state.
type Helper struct {
	builder *descriptor.Builder
	status  *status.Client
}

func New(builder *descriptor.Builder, client *status.Client) *Helper {
	return &Helper{builder: builder, status: client}
}

func (h *Helper) BuildMasterDescriptor(image string) (string, error) {
	return h.builder.BuildMasterDescriptor(image)
}

func (h *Helper) BuildSlaveDescriptor(image string, peers []string, coordinator string) (string, error) {
	return h.builder.BuildSlaveDescriptor(image, peers, coordinator)
}

func (h *Helper) GetNodeInfo(ctx context.Context, nodeRef string) (types.StatusResult, error) {
	return h.status.GetNodeInfo(ctx, nodeRef)
}

func (h *Helper) GetNodePerformance(ctx context.Context, nodeRef string) (types.StatusResult, error) {
	return h.status.GetNodePerformance(ctx, nodeRef)
}

func (h *Helper) GetServiceInfo(ctx context.Context, instance string) (types.StatusResult, error) {
	return h.status.GetServiceInfo(ctx, instance)
}

func (h *Helper) GetServicePerformance(ctx context.Context, instance string) (types.StatusResult, error) {
	return h.status.GetServicePerformance(ctx, instance)
}

// Remove always fails with ErrNotImplemented and changes nothing. Callers
// use it to learn that scaling down isn't supported.
func (h *Helper) Remove(count int, instance string) error {
	return ErrNotImplemented
}
