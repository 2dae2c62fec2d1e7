package ai

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/pelletier/go-toml/v2"

	"agritrace/internal/ports"
)

// ProfileSmartContract is the prompt profile used for contract drafts.
const ProfileSmartContract = "smart_contract"

//go:embed default_prompts.toml
var defaultPrompts []byte

type promptProfile struct {
	System string `toml:"system"`
	User   string `toml:"user"`
}

type promptFile struct {
	Version  int                      `toml:"version"`
	Profiles map[string]promptProfile `toml:"profiles"`
}

// Prompt is a rendered system/user pair ready for a provider.
type Prompt struct {
	System string
	User   string
}

// PromptBook holds parsed prompt profiles keyed by name.
type PromptBook struct {
	profiles map[string]*template.Template
	systems  map[string]string
}

// LoadPromptBook reads profiles from path, or the built-in set when path is empty.
func LoadPromptBook(path string) (*PromptBook, error) {
	raw := defaultPrompts
	if p := strings.TrimSpace(path); p != "" {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		raw = data
	}
	return ParsePromptBook(raw)
}

func ParsePromptBook(raw []byte) (*PromptBook, error) {
	var file promptFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return nil, err
	}
	if file.Version != 1 {
		return nil, fmt.Errorf("unsupported prompts version %d: expected version = 1", file.Version)
	}

	book := &PromptBook{
		profiles: make(map[string]*template.Template, len(file.Profiles)),
		systems:  make(map[string]string, len(file.Profiles)),
	}
	for name, profile := range file.Profiles {
		if strings.TrimSpace(profile.User) == "" {
			return nil, errors.New("profiles." + name + ".user is required")
		}
		tmpl, err := template.New(name).Option("missingkey=error").Parse(profile.User)
		if err != nil {
			return nil, fmt.Errorf("profiles.%s.user: %w", name, err)
		}
		book.profiles[name] = tmpl
		book.systems[name] = strings.TrimSpace(profile.System)
	}
	if _, ok := book.profiles[ProfileSmartContract]; !ok {
		return nil, errors.New("profiles." + ProfileSmartContract + " is required")
	}
	return book, nil
}

func (b *PromptBook) Render(profile string, input ports.ContractPrompt) (Prompt, error) {
	tmpl, ok := b.profiles[profile]
	if !ok {
		return Prompt{}, fmt.Errorf("unknown prompt profile %q", profile)
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, input); err != nil {
		return Prompt{}, fmt.Errorf("render prompt %q: %w", profile, err)
	}
	return Prompt{System: b.systems[profile], User: strings.TrimSpace(out.String())}, nil
}

// StripCodeFence removes a surrounding markdown code fence, if any.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.Index(trimmed, "\n"); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = ""
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
