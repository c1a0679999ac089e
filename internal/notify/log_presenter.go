package notify

import (
	"github.com/rota-dev/rota/internal/confirm"
	"github.com/rota-dev/rota/internal/logger"
)

// LogPresenter is the fallback confirmation surface used when no Telegram
// channel is configured. It only records the request; with nobody able to
// answer, the broker's timeout eventually rejects it.
type LogPresenter struct {
	logger *logger.Logger
}

func NewLogPresenter(log *logger.Logger) *LogPresenter {
	return &LogPresenter{logger: log}
}

func (p *LogPresenter) Present(req confirm.Request) {
	p.logger.Warn("confirmation requested but no notification channel is configured",
		logger.Field{Key: "request_id", Value: req.ID},
		logger.Field{Key: "unit", Value: req.UnitID},
		logger.Field{Key: "message", Value: req.Message})
}
