package gateway

import "go.uber.org/fx"

// Module provides the outbound gateway client.
var Module = fx.Module("gateway",
	fx.Provide(NewClient),
)
