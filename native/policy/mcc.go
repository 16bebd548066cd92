package policy

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MCCEntry classifies a merchant category code.
type MCCEntry struct {
	Code           string `yaml:"code"`
	Category       string `yaml:"category"`
	Description    string `yaml:"description"`
	DefaultBlocked bool   `yaml:"default_blocked"`
}

// MCCRegistry resolves merchant category codes to their category and default
// block status. Safe for concurrent use.
type MCCRegistry struct {
	mu      sync.RWMutex
	entries map[string]MCCEntry
}

// NewMCCRegistry returns a registry seeded with the built-in code set.
func NewMCCRegistry() *MCCRegistry {
	r := &MCCRegistry{entries: make(map[string]MCCEntry)}
	for _, entry := range defaultMCCEntries {
		r.entries[entry.Code] = entry
	}
	return r
}

var defaultMCCEntries = []MCCEntry{
	{Code: "5411", Category: "grocery", Description: "Grocery stores, supermarkets"},
	{Code: "5732", Category: "electronics", Description: "Electronics stores"},
	{Code: "5812", Category: "dining", Description: "Eating places, restaurants"},
	{Code: "5815", Category: "digital_goods", Description: "Digital goods: media"},
	{Code: "5816", Category: "digital_goods", Description: "Digital goods: games"},
	{Code: "5912", Category: "pharmacy", Description: "Drug stores and pharmacies"},
	{Code: "5967", Category: "adult_content", Description: "Direct marketing: inbound telemarketing", DefaultBlocked: true},
	{Code: "6011", Category: "cash_advance", Description: "Automated cash disbursements", DefaultBlocked: true},
	{Code: "6051", Category: "crypto_exchange", Description: "Quasi-cash: crypto, money orders"},
	{Code: "7273", Category: "dating", Description: "Dating and escort services", DefaultBlocked: true},
	{Code: "7372", Category: "software", Description: "Computer programming and data processing"},
	{Code: "7995", Category: "gambling", Description: "Betting, casino gaming", DefaultBlocked: true},
	{Code: "8398", Category: "charity", Description: "Charitable organizations"},
	{Code: "9399", Category: "government", Description: "Government services"},
}

// LoadMCCFile merges entries from a YAML file into the registry, replacing any
// existing code definitions.
func (r *MCCRegistry) LoadMCCFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("open mcc registry: %w", err)
	}
	var entries []MCCEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("decode mcc registry: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range entries {
		code := strings.TrimSpace(entry.Code)
		if code == "" {
			return fmt.Errorf("mcc entry missing code")
		}
		entry.Code = code
		entry.Category = strings.ToLower(strings.TrimSpace(entry.Category))
		r.entries[code] = entry
	}
	return nil
}

// Lookup resolves a code; ok is false for unknown codes.
func (r *MCCRegistry) Lookup(code string) (MCCEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[strings.TrimSpace(code)]
	return entry, ok
}
