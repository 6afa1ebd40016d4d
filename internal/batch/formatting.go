package batch

import (
	"encoding/json"

	"github.com/MeKo-Tech/godetect/internal/pipeline"
)

type batchJSON struct {
	Images []pipeline.BatchItem `json:"images"`
	Count  int                  `json:"count"`
}

func formatJSON(items []pipeline.BatchItem) (string, error) {
	if items == nil {
		items = []pipeline.BatchItem{}
	}
	b, err := json.MarshalIndent(batchJSON{Images: items, Count: len(items)}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
