package usage

import (
	"github.com/eresearchbill/reckon/internal/usage/kinds"
	"go.uber.org/fx"
)

var Module = fx.Module("usage.kinds",
	fx.Provide(kinds.NewRegistry),
)
