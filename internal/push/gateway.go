package push

import "github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"

// Gateway joins a Renderer and a Router into an orderstatus.NotificationGateway.
type Gateway struct {
	*Renderer
	*Router
}

var _ orderstatus.NotificationGateway = (*Gateway)(nil)

// NewGateway assembles the gateway used by the Worker.
func NewGateway(renderer *Renderer, router *Router) *Gateway {
	return &Gateway{Renderer: renderer, Router: router}
}
