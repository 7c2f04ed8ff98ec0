package paramstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// tokenValue mirrors the JSON shape secrets are stored in: {"token": "..."}.
type tokenValue struct {
	Token string `json:"token"`
}

// Static serves parameters from memory. Plain values are wrapped into the
// {"token": ...} shape so consumers parse them exactly like SSM values.
type Static struct {
	values map[string]string
}

// NewStatic builds a Static getter from name -> raw token pairs. Empty
// tokens are skipped so a missing env var reads as a missing parameter.
func NewStatic(tokens map[string]string) *Static {
	values := make(map[string]string, len(tokens))
	for name, tok := range tokens {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		raw, _ := json.Marshal(tokenValue{Token: tok})
		values[strings.TrimSpace(name)] = string(raw)
	}
	return &Static{values: values}
}

func (s *Static) GetParameter(_ context.Context, name string) (string, error) {
	v, ok := s.values[strings.TrimSpace(name)]
	if !ok {
		return "", fmt.Errorf("%w: %q not set", ErrParameterNotFound, name)
	}
	return v, nil
}

// Fallback tries each getter in order and returns the first value found.
type Fallback []Getter

func (f Fallback) GetParameter(ctx context.Context, name string) (string, error) {
	if len(f) == 0 {
		return "", errors.New("paramstore: no getters configured")
	}
	var errs []error
	for _, g := range f {
		v, err := g.GetParameter(ctx, name)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	return "", errors.Join(errs...)
}

// Token fetches name and extracts the token field.
func Token(ctx context.Context, g Getter, name string) (string, error) {
	if g == nil {
		return "", errors.New("paramstore: getter is nil")
	}
	raw, err := g.GetParameter(ctx, name)
	if err != nil {
		return "", err
	}
	var tv tokenValue
	if err := json.Unmarshal([]byte(raw), &tv); err != nil {
		return "", fmt.Errorf("paramstore: unmarshal %q as token JSON: %w", name, err)
	}
	if strings.TrimSpace(tv.Token) == "" {
		return "", fmt.Errorf("paramstore: token in %q is empty", name)
	}
	return tv.Token, nil
}
