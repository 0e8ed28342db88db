// Package config holds MAMAConfig: the JSON settings file that selects the
// embedding model, the session context-injection mode, and the policy
// constants used by health, search and mentoring.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/HendryAvila/mama/internal/embedding"
)

const (
	// FileName is the config file inside the data directory.
	FileName = "config.json"
	// HomeEnv overrides the default data directory.
	HomeEnv = "MAMA_HOME"
	// OpenAIKeyEnv is read for the OpenAI provider. The key is never persisted.
	OpenAIKeyEnv = "OPENAI_API_KEY"
)

// Injection modes for session-start context.
const (
	InjectionNone = "none"
	InjectionHint = "hint"
	InjectionFull = "full"
)

// InjectionModes returns the enum values for tool definitions.
func InjectionModes() []string {
	return []string{InjectionNone, InjectionHint, InjectionFull}
}

// Policy holds tunable thresholds. None of them are invariants; they are
// product defaults.
type Policy struct {
	StaleAfterDays        int     `json:"stale_after_days" validate:"gte=1"`
	EchoRatioThreshold    float64 `json:"echo_ratio_threshold" validate:"gte=0,lte=1"`
	EchoMinEdges          int     `json:"echo_min_edges" validate:"gte=0"`
	SimilarityThreshold   float64 `json:"similarity_threshold" validate:"gt=0,lte=1"`
	SimilarityWindowHours int     `json:"similarity_window_hours" validate:"gte=1"`
	RecencyHorizonDays    int     `json:"recency_horizon_days" validate:"gte=1"`
	MaxActionHints        int     `json:"max_action_hints" validate:"gte=1,lte=10"`
	SearchDefaultK        int     `json:"search_default_k" validate:"gte=1,lte=100"`
	SearchDefaultMinScore float64 `json:"search_default_min_score" validate:"gte=-1,lte=1"`
	RecentDecisions       int     `json:"recent_decisions" validate:"gte=0,lte=50"`
}

// MAMAConfig is the persisted configuration.
type MAMAConfig struct {
	EmbeddingModel   string `json:"embedding_model" validate:"required,embedmodel"`
	ContextInjection string `json:"context_injection" validate:"required,oneof=none hint full"`
	DataDir          string `json:"data_dir" validate:"required"`
	OllamaHost       string `json:"ollama_host,omitempty" validate:"omitempty,url"`
	ModulesDir       string `json:"modules_dir,omitempty"`
	LogLevel         string `json:"log_level,omitempty" validate:"omitempty,oneof=debug info warn error"`
	Policy           Policy `json:"policy"`

	// ToolVerbs lets a dispatcher declare which tool-name verbs change state.
	ToolVerbs ToolVerbs `json:"tool_verbs"`
}

// ToolVerbs extends the built-in verbs that classify a tool call as mutating
// or read-only. A verb is one '_', '.' or '-' separated segment of a tool
// name, e.g. "extrude" in "cad_extrude_face". Listing a built-in verb in the
// other set moves it there.
type ToolVerbs struct {
	Mutating []string `json:"mutating,omitempty" validate:"dive,toolverb"`
	ReadOnly []string `json:"read_only,omitempty" validate:"dive,toolverb"`
}

// Clone returns a copy that shares no backing arrays with v.
func (v ToolVerbs) Clone() ToolVerbs {
	return ToolVerbs{
		Mutating: append([]string(nil), v.Mutating...),
		ReadOnly: append([]string(nil), v.ReadOnly...),
	}
}

// Equal reports whether both sets list the same verbs in the same order.
func (v ToolVerbs) Equal(o ToolVerbs) bool {
	return slices.Equal(v.Mutating, o.Mutating) && slices.Equal(v.ReadOnly, o.ReadOnly)
}

// DefaultPolicy returns the shipped thresholds.
func DefaultPolicy() Policy {
	return Policy{
		StaleAfterDays:        90,
		EchoRatioThreshold:    0.10,
		EchoMinEdges:          10,
		SimilarityThreshold:   0.85,
		SimilarityWindowHours: 168,
		RecencyHorizonDays:    30,
		MaxActionHints:        3,
		SearchDefaultK:        5,
		SearchDefaultMinScore: 0.2,
		RecentDecisions:       5,
	}
}

// Default returns a config rooted at dataDir.
func Default(dataDir string) *MAMAConfig {
	return &MAMAConfig{
		EmbeddingModel:   embedding.DefaultModel,
		ContextInjection: InjectionHint,
		DataDir:          dataDir,
		OllamaHost:       embedding.DefaultOllamaHost,
		LogLevel:         "info",
		Policy:           DefaultPolicy(),
	}
}

// DefaultDataDir is $MAMA_HOME, or ~/.mama.
func DefaultDataDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".mama"), nil
}

// Path returns the config file path for a data directory.
func Path(dataDir string) string {
	return filepath.Join(dataDir, FileName)
}

// EmbeddingOptions returns provider settings, reading secrets from the environment.
func (c *MAMAConfig) EmbeddingOptions() embedding.Options {
	return embedding.Options{
		OllamaHost: c.OllamaHost,
		OpenAIKey:  os.Getenv(OpenAIKeyEnv),
	}
}

// ─── Validation ──────────────────────────────────────────────────────────────

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("embedmodel", func(fl validator.FieldLevel) bool {
		_, err := embedding.ParseModel(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("toolverb", func(fl validator.FieldLevel) bool {
		v := strings.TrimSpace(fl.Field().String())
		return v != "" && !strings.ContainsAny(v, "_.- ")
	})
}

// Validate checks every field. Failures are reported as one readable error.
func (c *MAMAConfig) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// ─── Patch ───────────────────────────────────────────────────────────────────

// Apply merges a JSON object patch over c and returns the validated result.
// Only keys present in the patch change; unknown keys are rejected. c is not
// modified.
func (c *MAMAConfig) Apply(patch []byte) (*MAMAConfig, error) {
	next := *c
	next.ToolVerbs = c.ToolVerbs.Clone()
	dec := json.NewDecoder(bytes.NewReader(patch))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return nil, fmt.Errorf("parsing config patch: %w", err)
	}
	next.ContextInjection = strings.ToLower(strings.TrimSpace(next.ContextInjection))
	next.EmbeddingModel = strings.TrimSpace(next.EmbeddingModel)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}
