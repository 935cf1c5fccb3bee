package inference

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseCards reads the card list out of a completion text. The model is asked
// for a bare JSON array but tends to wrap it in prose or code fences, so the
// outermost [...] span is decoded. Cards without a question are dropped.
func ParseCards(text string) ([]Card, error) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no card list in response", ErrMalformedResponse)
	}
	var raw []Card
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return usableCards(raw)
}

// usableCards drops cards without a question and fails when none remain.
func usableCards(raw []Card) ([]Card, error) {
	cards := make([]Card, 0, len(raw))
	for _, c := range raw {
		if strings.TrimSpace(c.Question) == "" {
			continue
		}
		cards = append(cards, c)
	}
	if len(cards) == 0 {
		return nil, fmt.Errorf("%w: empty card list", ErrMalformedResponse)
	}
	return cards, nil
}
