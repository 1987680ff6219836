// Package ragsettings loads, validates and updates the shared retrieval settings.
package ragsettings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"ArticleWatch/internal/domain"
	"ArticleWatch/internal/logging"
	"ArticleWatch/internal/ports"
)

// Setting keys as stored.
const (
	KeyUseSimilarityGuard  = "use_similarity_guard"
	KeyContextTurns        = "context_turns"
	KeySimilarityThreshold = "similarity_threshold"
	KeyGuardMessage        = "guard_message"
	KeyMatchCount          = "match_count"
	KeyMatchThreshold      = "match_threshold"
	KeyFTSWeight           = "fts_weight"
	KeyVectorWeight        = "vector_weight"
	KeyRRFK                = "rrf_k"
	KeyHybridTopK          = "hybrid_top_k"
)

const (
	DefaultGuardMessage = "Requête trop éloignée de la recherche fondamentale."
	maxGuardMessageLen  = 1000
)

type kind int

const (
	kindBool kind = iota
	kindInt
	kindFloat
	kindString
)

type bound struct {
	kind     kind
	min, max float64
}

var bounds = map[string]bound{
	KeyUseSimilarityGuard:  {kind: kindBool},
	KeyContextTurns:        {kind: kindInt, min: 1, max: 10},
	KeySimilarityThreshold: {kind: kindFloat, min: 0.1, max: 0.9},
	KeyGuardMessage:        {kind: kindString},
	KeyMatchCount:          {kind: kindInt, min: 5, max: 100},
	KeyMatchThreshold:      {kind: kindFloat, min: 0, max: 1},
	KeyFTSWeight:           {kind: kindFloat, min: 0, max: 10},
	KeyVectorWeight:        {kind: kindFloat, min: 0, max: 10},
	KeyRRFK:                {kind: kindInt, min: 1, max: 200},
	KeyHybridTopK:          {kind: kindInt, min: 5, max: 100},
}

// Keys lists every setting key in a stable order.
func Keys() []string {
	keys := make([]string, 0, len(bounds))
	for k := range bounds {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Defaults returns the settings used for absent or unreadable keys.
func Defaults() domain.RagSettings {
	return domain.RagSettings{
		UseSimilarityGuard:  true,
		ContextTurns:        3,
		SimilarityThreshold: 0.5,
		GuardMessage:        DefaultGuardMessage,
		MatchCount:          20,
		MatchThreshold:      0.3,
		FTSWeight:           1,
		VectorWeight:        1,
		RRFK:                60,
		HybridTopK:          20,
	}
}

// FromValues reads stored values over the defaults. A missing or unparsable
// value keeps its default.
func FromValues(values map[string]string) domain.RagSettings {
	s := Defaults()
	if v, ok := values[KeyUseSimilarityGuard]; ok && strings.TrimSpace(v) != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			s.UseSimilarityGuard = true
		default:
			s.UseSimilarityGuard = false
		}
	}
	readInt(values, KeyContextTurns, &s.ContextTurns)
	readFloat(values, KeySimilarityThreshold, &s.SimilarityThreshold)
	if msg := strings.TrimSpace(values[KeyGuardMessage]); msg != "" {
		s.GuardMessage = msg
	}
	readInt(values, KeyMatchCount, &s.MatchCount)
	readFloat(values, KeyMatchThreshold, &s.MatchThreshold)
	readFloat(values, KeyFTSWeight, &s.FTSWeight)
	readFloat(values, KeyVectorWeight, &s.VectorWeight)
	readInt(values, KeyRRFK, &s.RRFK)
	readInt(values, KeyHybridTopK, &s.HybridTopK)
	return s
}

func readInt(values map[string]string, key string, dst *int) {
	if n, err := strconv.Atoi(strings.TrimSpace(values[key])); err == nil {
		*dst = n
	}
}

func readFloat(values map[string]string, key string, dst *float64) {
	if f, err := strconv.ParseFloat(strings.TrimSpace(values[key]), 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		*dst = f
	}
}

// FieldError rejects one field of a settings patch.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ParsePatch validates every field of a patch and returns the normalized values
// to store. Any invalid field rejects the whole patch.
func ParsePatch(patch map[string]string) (map[string]string, error) {
	if len(patch) == 0 {
		return nil, errors.New("settings patch is empty")
	}
	keys := make([]string, 0, len(patch))
	for k := range patch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(patch))
	for _, key := range keys {
		normalized, err := normalize(key, patch[key])
		if err != nil {
			return nil, err
		}
		out[key] = normalized
	}
	return out, nil
}

func normalize(key, raw string) (string, error) {
	b, ok := bounds[key]
	if !ok {
		return "", &FieldError{Field: key, Reason: "unknown setting"}
	}
	value := strings.TrimSpace(raw)

	switch b.kind {
	case kindBool:
		v, err := strconv.ParseBool(value)
		if err != nil {
			return "", &FieldError{Field: key, Reason: "must be true or false"}
		}
		return strconv.FormatBool(v), nil
	case kindString:
		if utf8.RuneCountInString(raw) > maxGuardMessageLen {
			return "", &FieldError{Field: key, Reason: fmt.Sprintf("must be at most %d characters", maxGuardMessageLen)}
		}
		return raw, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", &FieldError{Field: key, Reason: "must be an integer"}
		}
		if float64(n) < b.min || float64(n) > b.max {
			return "", &FieldError{Field: key, Reason: fmt.Sprintf("must be between %g and %g (got %d)", b.min, b.max, n)}
		}
		return strconv.Itoa(n), nil
	default:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", &FieldError{Field: key, Reason: "must be a number"}
		}
		if f < b.min || f > b.max {
			return "", &FieldError{Field: key, Reason: fmt.Sprintf("must be between %g and %g (got %g)", b.min, b.max, f)}
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	}
}

// Service reads and updates settings through a SettingsStore.
type Service struct {
	store  ports.SettingsStore
	logger *slog.Logger
}

// NewService wires the settings store.
func NewService(store ports.SettingsStore, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logging.OrDiscard(logger)}
}

// Load returns the current settings. Store failures fall back to the defaults.
func (s *Service) Load(ctx context.Context) domain.RagSettings {
	if s.store == nil {
		return Defaults()
	}
	values, err := s.store.LoadSettings(ctx)
	if err != nil {
		s.logger.Warn("settings load failed, using defaults", "error", err)
		return Defaults()
	}
	return FromValues(values)
}

// Update validates the patch, saves it in one step and returns the new settings.
// Nothing is written when any field is invalid.
func (s *Service) Update(ctx context.Context, patch map[string]string) (domain.RagSettings, error) {
	values, err := ParsePatch(patch)
	if err != nil {
		return domain.RagSettings{}, err
	}
	if s.store == nil {
		return domain.RagSettings{}, errors.New("settings store is not configured")
	}
	if err := s.store.SaveSettings(ctx, values); err != nil {
		return domain.RagSettings{}, fmt.Errorf("save settings: %w", err)
	}
	s.logger.Info("settings updated", "keys", len(values))
	return s.Load(ctx), nil
}

// Values renders settings in their stored string form.
func Values(s domain.RagSettings) map[string]string {
	return map[string]string{
		KeyUseSimilarityGuard:  strconv.FormatBool(s.UseSimilarityGuard),
		KeyContextTurns:        strconv.Itoa(s.ContextTurns),
		KeySimilarityThreshold: strconv.FormatFloat(s.SimilarityThreshold, 'f', -1, 64),
		KeyGuardMessage:        s.GuardMessage,
		KeyMatchCount:          strconv.Itoa(s.MatchCount),
		KeyMatchThreshold:      strconv.FormatFloat(s.MatchThreshold, 'f', -1, 64),
		KeyFTSWeight:           strconv.FormatFloat(s.FTSWeight, 'f', -1, 64),
		KeyVectorWeight:        strconv.FormatFloat(s.VectorWeight, 'f', -1, 64),
		KeyRRFK:                strconv.Itoa(s.RRFK),
		KeyHybridTopK:          strconv.Itoa(s.HybridTopK),
	}
}
