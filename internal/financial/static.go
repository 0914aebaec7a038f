package financial

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"reflextrader/internal/models"
)

// StaticProvider serves symbol attributes from an in-memory map or an
// optional JSON mock file. Symbols absent from the data set are reported as
// missing. Used for offline runs and tests.
type StaticProvider struct {
	Data     map[string]map[string]any
	MockFile string
}

func NewStaticProvider(data map[string]map[string]any) *StaticProvider {
	return &StaticProvider{Data: data}
}

func NewStaticProviderFromFile(mockFile string) *StaticProvider {
	return &StaticProvider{MockFile: mockFile}
}

func (p *StaticProvider) load() (map[string]map[string]any, []string, error) {
	if p.Data != nil {
		return p.Data, nil, nil
	}
	if p.MockFile == "" {
		return map[string]map[string]any{}, []string{"Static financial provider: no data configured."}, nil
	}
	raw, err := os.ReadFile(p.MockFile)
	if err != nil {
		return nil, nil, fmt.Errorf("financial mock file unreadable: %w", err)
	}
	var data map[string]map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, nil, fmt.Errorf("financial mock file invalid: %w", err)
	}
	return data, []string{fmt.Sprintf("Static financial data loaded from %s", p.MockFile)}, nil
}

func (p *StaticProvider) Fetch(_ context.Context, symbols []string) (models.FinancialSnapshot, error) {
	data, notes, err := p.load()
	if err != nil {
		return models.FinancialSnapshot{}, err
	}

	symbolsData := make(map[string]map[string]any)
	var missing []string
	for _, raw := range symbols {
		sym := strings.ToUpper(strings.TrimSpace(raw))
		if sym == "" {
			continue
		}
		if payload, ok := data[sym]; ok {
			symbolsData[sym] = payload
			continue
		}
		symbolsData[sym] = map[string]any{"status": "no_data"}
		missing = append(missing, sym)
	}

	return models.FinancialSnapshot{
		Source:         "static",
		AsOf:           models.UTCNowISO(),
		SymbolsData:    symbolsData,
		MissingSymbols: missing,
		Notes:          notes,
	}, nil
}
