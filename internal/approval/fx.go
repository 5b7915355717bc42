package approval

import "go.uber.org/fx"

var Module = fx.Module("approval.service",
	fx.Provide(NewGate),
	fx.Provide(NewLocker),
	fx.Provide(NewService),
)
