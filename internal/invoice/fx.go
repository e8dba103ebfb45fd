package invoice

import (
	"github.com/smallbiznis/invoiceledger/internal/invoice/domain"
	"github.com/smallbiznis/invoiceledger/internal/invoice/repository"
	"github.com/smallbiznis/invoiceledger/internal/invoice/sequence"
	"github.com/smallbiznis/invoiceledger/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.New),
	fx.Provide(fx.Annotate(sequence.New, fx.As(new(domain.SequenceAllocator)))),
	fx.Provide(service.NewService),
)
