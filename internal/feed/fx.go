package feed

import (
	"time"

	"github.com/eresearchbill/reckon/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewFromConfig(cfg config.Config, log *zap.Logger) *Client {
	return NewClient(time.Duration(cfg.FeedTimeout)*time.Second, log)
}

// Module wires the feed client.
var Module = fx.Module("feed",
	fx.Provide(NewFromConfig),
)
