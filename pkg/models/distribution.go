package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// CategoryCount カテゴリ名と件数
type CategoryCount struct {
	Label string  `json:"label"`
	Count float64 `json:"count"`
}

// Distribution カテゴリ別件数。JSONオブジェクトのキー順をそのまま保持します。
type Distribution []CategoryCount

// UnmarshalJSON オブジェクト形式 {"Maize": 3} と配列形式 [{"label": "Maize", "count": 3}] の両方を受け付ける
func (d *Distribution) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = nil
		return nil
	}

	if trimmed[0] == '[' {
		var items []struct {
			Label string   `json:"label"`
			Name  string   `json:"name"`
			Count *float64 `json:"count"`
			Value *float64 `json:"value"`
		}
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("failed to parse distribution list: %w", err)
		}
		out := make(Distribution, 0, len(items))
		for _, item := range items {
			c := CategoryCount{Label: item.Label}
			if c.Label == "" {
				c.Label = item.Name
			}
			switch {
			case item.Count != nil:
				c.Count = *item.Count
			case item.Value != nil:
				c.Count = *item.Value
			}
			out = append(out, c)
		}
		*d = out
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to parse distribution: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("distribution must be an object or a list")
	}

	out := make(Distribution, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to parse distribution key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("distribution key must be a string")
		}
		var value *float64
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("distribution value for %q: %w", key, err)
		}
		c := CategoryCount{Label: key}
		if value != nil {
			c.Count = *value
		}
		out = append(out, c)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to parse distribution: %w", err)
	}

	*d = out
	return nil
}

// Total 件数の合計
func (d Distribution) Total() float64 {
	var sum float64
	for _, c := range d {
		sum += c.Count
	}
	return sum
}
