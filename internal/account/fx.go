package account

import (
	"github.com/smallbiznis/ndpcatalog/internal/account/repository"
	"github.com/smallbiznis/ndpcatalog/internal/account/service"
	"go.uber.org/fx"
)

var Module = fx.Module("account.service",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
