package invoiceoverview

import (
	"github.com/smallbiznis/invoiceledger/internal/invoiceoverview/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoiceoverview.service",
	fx.Provide(service.NewService),
)
