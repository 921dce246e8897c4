package service

import (
	"log/slog"

	"github.com/okryvyi/seatwave/internal/ledger"
	"github.com/okryvyi/seatwave/internal/locker"
	"github.com/okryvyi/seatwave/internal/persist"
	redisx "github.com/okryvyi/seatwave/internal/redis"
	"github.com/okryvyi/seatwave/internal/service/allocation"
	"github.com/okryvyi/seatwave/internal/service/query"
	"github.com/okryvyi/seatwave/internal/store"
)

type Services struct {
	Allocation *allocation.Service
	Query      *query.Service
}

func NewServices(
	led *ledger.Ledger,
	bookings *store.Store,
	locks *locker.Keyed,
	pub allocation.Publisher,
	port persist.Port,
	cache *redisx.Cache,
	logger *slog.Logger,
) *Services {
	return &Services{
		Allocation: allocation.New(led, bookings, locks, pub, port, cache, logger),
		Query:      query.New(led, bookings, locks, cache, logger),
	}
}
