package financial

import (
	"context"

	"reflextrader/internal/models"
)

// Provider 按 symbol 拉取价格/基本面属性。
type Provider interface {
	Fetch(ctx context.Context, symbols []string) (models.FinancialSnapshot, error)
}
