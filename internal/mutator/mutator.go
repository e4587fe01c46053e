// Package mutator implements EvolutionaryMutator (C15): recursive
// self-improvement of the BehavioralAdversary's system prompt, driven
// by its worst-scoring predictions and fenced by a Symmetry Guard that
// rejects any rewrite dropping risk-management language or containing
// reckless trading patterns.
package mutator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/AbhayRathi/AlphaWEEX/internal/ledger"
	"github.com/AbhayRathi/AlphaWEEX/internal/llm"
)

// BaseSystemPrompt seeds version 0 the first time a prompts directory
// is used.
const BaseSystemPrompt = `You are a behavioral psychologist analyzing trader psychology.

Your mission is to identify human psychological vulnerabilities:
1. FOMO Chasers - buying extensions after vertical moves
2. Panic Sellers - capitulating at support levels
3. Revenge Traders - emotional overtrading after losses

CRITICAL RULES:
- Always explain your reasoning step-by-step (Chain-of-Thought)
- Never recommend trading without stop-losses
- Consider both technical indicators AND narrative sentiment
- Identify if moves are "Rational" or "Emotional"
- Predict whale liquidity hunt zones

Thresholds:
- FOMO: RSI > 70 + Price extension > 3%
- Panic: RSI < 30 + Fear sentiment
- Liquidity Hunt: 0.5% below swing lows
`

var requiredRiskTerms = []string{"stop", "risk", "loss", "risk management"}
var requiredCoTTerms = []string{"reasoning", "explain", "step-by-step", "chain-of-thought"}
var dangerousPatterns = []string{"no stop", "ignore risk", "unlimited loss", "all in", "no risk management"}

const promptFilePrefix = "adversary_v"

// Mutator owns the on-disk prompt versions and the evolution cadence.
type Mutator struct {
	log             zerolog.Logger
	llmAdapter      *llm.Adapter
	model           string
	promptsDir      string
	archiveDir      string
	evolutionPeriod time.Duration

	mu                sync.Mutex
	currentVersion    int
	lastEvolutionTime time.Time
}

// New opens (or initializes) the prompts directory, seeding version 0
// with BaseSystemPrompt when no version exists yet.
func New(promptsDir string, llmAdapter *llm.Adapter, model string, evolutionPeriod time.Duration, log zerolog.Logger) (*Mutator, error) {
	archiveDir := filepath.Join(promptsDir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create prompts archive dir: %w", err)
	}

	m := &Mutator{
		log:             log.With().Str("component", "evolutionary_mutator").Logger(),
		llmAdapter:      llmAdapter,
		model:           model,
		promptsDir:      promptsDir,
		archiveDir:      archiveDir,
		evolutionPeriod: evolutionPeriod,
	}

	version, err := m.discoverCurrentVersion()
	if err != nil {
		return nil, err
	}
	m.currentVersion = version
	m.log.Info().Int("version", m.currentVersion).Msg("evolutionary mutator initialized")
	return m, nil
}

func (m *Mutator) discoverCurrentVersion() (int, error) {
	entries, err := os.ReadDir(m.promptsDir)
	if err != nil {
		return 0, fmt.Errorf("read prompts dir: %w", err)
	}

	best := -1
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		v, ok := versionFromFilename(e.Name())
		if ok && v > best {
			best = v
		}
	}
	if best < 0 {
		if err := m.savePrompt(BaseSystemPrompt, 0); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return best, nil
}

func versionFromFilename(name string) (int, bool) {
	if !strings.HasPrefix(name, promptFilePrefix) || !strings.HasSuffix(name, ".txt") {
		return 0, false
	}
	stem := strings.TrimSuffix(strings.TrimPrefix(name, promptFilePrefix), ".txt")
	v, err := strconv.Atoi(stem)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (m *Mutator) promptPath(version int) string {
	return filepath.Join(m.promptsDir, fmt.Sprintf("%s%d.txt", promptFilePrefix, version))
}

func (m *Mutator) savePrompt(prompt string, version int) error {
	header := fmt.Sprintf("# Adversary System Prompt v%d\n# Generated: %s\n\n", version, time.Now().Format(time.RFC3339))
	return os.WriteFile(m.promptPath(version), []byte(header+prompt), 0o644)
}

func (m *Mutator) archiveCurrentPrompt() error {
	current := m.promptPath(m.currentVersion)
	data, err := os.ReadFile(current)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read prompt to archive: %w", err)
	}
	archived := filepath.Join(m.archiveDir, fmt.Sprintf("%s%d_%s.txt", promptFilePrefix, m.currentVersion, time.Now().Format("20060102_150405")))
	return os.WriteFile(archived, data, 0o644)
}

// LoadCurrentPrompt returns the active prompt body, stripped of its
// header comment lines.
func (m *Mutator) LoadCurrentPrompt() string {
	m.mu.Lock()
	version := m.currentVersion
	m.mu.Unlock()

	data, err := os.ReadFile(m.promptPath(version))
	if err != nil {
		m.log.Warn().Int("version", version).Msg("prompt file missing, falling back to base prompt")
		return BaseSystemPrompt
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// CurrentVersion returns the active prompt's version number.
func (m *Mutator) CurrentVersion() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentVersion
}

// EvolvePrompt analyzes the supplied failed predictions, asks the LLM
// to rewrite the current prompt to address them, validates the
// rewrite through the Symmetry Guard, and installs it as a new
// version on success. Returns ("", nil) when evolution is skipped
// (interval not yet elapsed, no failures to learn from) rather than
// erroring, matching the fault-tolerant, skip-don't-crash contract
// used across the rest of the process's periodic jobs.
func (m *Mutator) EvolvePrompt(ctx context.Context, failures []ledger.Prediction, force bool) (string, error) {
	m.mu.Lock()
	if !force && !m.lastEvolutionTime.IsZero() {
		since := time.Since(m.lastEvolutionTime)
		if since < m.evolutionPeriod {
			m.mu.Unlock()
			m.log.Info().Dur("since_last", since).Msg("skipping evolution, interval not elapsed")
			return "", nil
		}
	}
	m.mu.Unlock()

	if len(failures) == 0 {
		m.log.Warn().Msg("no failed predictions to learn from, skipping evolution")
		return "", nil
	}

	currentPrompt := m.LoadCurrentPrompt()
	analysisPrompt := buildEvolutionPrompt(currentPrompt, failures)

	completion, err := m.llmAdapter.Complete(ctx,
		"You are an AI prompt engineer specializing in improving behavioral analysis systems. Analyze failures and rewrite system prompts to improve accuracy.",
		analysisPrompt, 0.8, 2000, 30*time.Second)
	if err != nil {
		return "", fmt.Errorf("generate evolved prompt: %w", err)
	}

	newPrompt := extractPrompt(completion.Content)
	if ok, reason := symmetryGuard(newPrompt); !ok {
		m.log.Error().Str("reason", reason).Msg("symmetry guard rejected evolved prompt")
		return "", fmt.Errorf("symmetry guard rejected evolved prompt: %s", reason)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.archiveCurrentPrompt(); err != nil {
		return "", fmt.Errorf("archive current prompt: %w", err)
	}
	m.currentVersion++
	if err := m.savePrompt(newPrompt, m.currentVersion); err != nil {
		return "", fmt.Errorf("save evolved prompt: %w", err)
	}
	m.lastEvolutionTime = time.Now()

	m.log.Info().Int("version", m.currentVersion).Msg("prompt evolved")
	return newPrompt, nil
}

func buildEvolutionPrompt(currentPrompt string, failures []ledger.Prediction) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT ADVERSARY SYSTEM PROMPT:\n%s\n\nTOP FAILED PREDICTIONS:\n", currentPrompt)

	top := failures
	if len(top) > 5 {
		top = top[:5]
	}
	for i, p := range top {
		actual1h := 0.0
		if p.ActualPrice1h != nil {
			actual1h = *p.ActualPrice1h
		}
		fmt.Fprintf(&b, "\nFAILURE #%d:\n- Predicted Bias: %s\n- Predicted Outcome: %s\n- Archetype: %s\n- Signal: %s\n- Confidence: %.2f\n- Price at Prediction: $%.2f\n- Actual Price (1h): $%.2f\n",
			i+1, orNA(p.PredictedBias), orNA(p.PredictedOutcome), orNA(p.Archetype), orNA(p.Signal), p.Confidence, p.PriceAtPrediction, actual1h)
	}

	b.WriteString(`
TASK:
Analyze why these psychological predictions failed. Then rewrite the Adversary's
system prompt to refine threshold sensitivities for FOMO and Panic detection.

REQUIREMENTS:
1. Maintain Chain-of-Thought reasoning requirement
2. Keep all safety rules (no trading without stops)
3. Adjust detection thresholds based on failures
4. Improve contextual inference logic
5. Keep the prompt concise and actionable

OUTPUT:
Provide the complete rewritten system prompt between [PROMPT_START] and [PROMPT_END] tags.
`)
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func extractPrompt(response string) string {
	const startMarker, endMarker = "[PROMPT_START]", "[PROMPT_END]"
	startIdx := strings.Index(response, startMarker)
	endIdx := strings.Index(response, endMarker)
	if startIdx >= 0 && endIdx > startIdx {
		return strings.TrimSpace(response[startIdx+len(startMarker) : endIdx])
	}
	return strings.TrimSpace(response)
}

// symmetryGuard enforces the non-negotiable safety floor on any
// rewritten prompt: it must still mention risk management, must still
// require step-by-step reasoning, and must not contain any reckless
// trading phrase.
func symmetryGuard(prompt string) (bool, string) {
	lower := strings.ToLower(prompt)

	if !containsAny(lower, requiredRiskTerms) {
		return false, "missing stop-loss/risk management language"
	}
	if !containsAny(lower, requiredCoTTerms) {
		return false, "missing chain-of-thought reasoning requirement"
	}
	if pattern, found := firstMatch(lower, dangerousPatterns); found {
		return false, fmt.Sprintf("dangerous pattern detected: %q", pattern)
	}
	return true, ""
}

func containsAny(haystack string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

func firstMatch(haystack string, terms []string) (string, bool) {
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			return t, true
		}
	}
	return "", false
}

// VersionInfo describes one archived or active prompt version.
type VersionInfo struct {
	Version int
	Path    string
}

// EvolutionHistory lists every saved prompt version, ascending.
func (m *Mutator) EvolutionHistory() ([]VersionInfo, error) {
	entries, err := os.ReadDir(m.promptsDir)
	if err != nil {
		return nil, fmt.Errorf("read prompts dir: %w", err)
	}

	var history []VersionInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		v, ok := versionFromFilename(e.Name())
		if !ok {
			continue
		}
		history = append(history, VersionInfo{Version: v, Path: filepath.Join(m.promptsDir, e.Name())})
	}
	sort.Slice(history, func(i, j int) bool { return history[i].Version < history[j].Version })
	return history, nil
}
