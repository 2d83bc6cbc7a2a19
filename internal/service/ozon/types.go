package ozon

import (
	"bytes"
	"encoding/json"
)

// metricValue accepts both positional numbers and {"key": ..., "value": ...}
// objects in a row's metrics array.
type metricValue struct {
	Key   string
	Value float64
}

func (m *metricValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var kv struct {
			Key   string  `json:"key"`
			Value float64 `json:"value"`
		}
		if err := json.Unmarshal(b, &kv); err != nil {
			return err
		}
		m.Key, m.Value = kv.Key, kv.Value
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	return json.Unmarshal(b, &m.Value)
}

type analyticsRow struct {
	Metrics []metricValue `json:"metrics"`
}

type analyticsResponse struct {
	Result struct {
		Data []analyticsRow `json:"data"`
	} `json:"result"`
}

type reportRequest struct {
	DateFrom  string   `json:"date_from"`
	DateTo    string   `json:"date_to"`
	Metrics   []string `json:"metrics"`
	Dimension []string `json:"dimension"`
	Limit     int      `json:"limit,omitempty"`
}

// sum totals metric key over rows. requested is the metric order of the
// request, used when the upstream answers with positional numbers.
func sum(rows []analyticsRow, requested []string, key string) float64 {
	pos := -1
	for i, k := range requested {
		if k == key {
			pos = i
			break
		}
	}

	var total float64
	for _, row := range rows {
		for i, m := range row.Metrics {
			if m.Key == key || (m.Key == "" && i == pos) {
				total += m.Value
				break
			}
		}
	}
	return total
}

type stocksRequest struct {
	Filter struct {
		Visibility string `json:"visibility"`
	} `json:"filter"`
	LastID string `json:"last_id"`
	Limit  int    `json:"limit"`
}

type stockItem struct {
	ProductID int64  `json:"product_id"`
	OfferID   string `json:"offer_id"`
	Name      string `json:"name"`
	Stocks    []struct {
		Present       float64 `json:"present"`
		Reserved      float64 `json:"reserved"`
		WarehouseName string  `json:"warehouse_name"`
		Type          string  `json:"type"`
	} `json:"stocks"`
}

type stocksResponse struct {
	Result struct {
		Items []stockItem `json:"items"`
	} `json:"result"`
	Items []stockItem `json:"items"`
}

func (r *stocksResponse) items() []stockItem {
	if len(r.Result.Items) > 0 {
		return r.Result.Items
	}
	return r.Items
}
