package dataset

import (
	"github.com/smallbiznis/ndpcatalog/internal/dataset/repository"
	"github.com/smallbiznis/ndpcatalog/internal/dataset/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dataset.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
