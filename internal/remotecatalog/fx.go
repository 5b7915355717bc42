package remotecatalog

import "go.uber.org/fx"

var Module = fx.Module("remotecatalog.client",
	fx.Provide(
		NewFromParams,
		func(c *Client) API { return c },
	),
)
