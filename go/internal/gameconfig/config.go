// Package gameconfig loads question templates and game timing from YAML.
package gameconfig

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/mcdev12/rankparty/go/internal/apperr"
	"github.com/mcdev12/rankparty/go/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// QuestionTemplate is one question of a template.
type QuestionTemplate struct {
	Text         string   `yaml:"text" json:"text"`
	Category     string   `yaml:"category" json:"category"`
	FixedOptions []string `yaml:"fixed_options,omitempty" json:"fixed_options,omitempty"`
}

// Template is a named question set a room can be created from.
type Template struct {
	ID        string             `yaml:"id" json:"id"`
	Name      string             `yaml:"name" json:"name"`
	Questions []QuestionTemplate `yaml:"questions" json:"questions"`
}

type Config struct {
	PairingCodeTTL   time.Duration `yaml:"pairing_code_ttl"`
	AutoAdvanceDelay time.Duration `yaml:"auto_advance_delay"`
	DefaultTemplate  string        `yaml:"default_template"`
	TemplateList     []Template    `yaml:"templates"`
}

// Default returns the built-in configuration.
func Default() (*Config, error) {
	return Parse(defaultConfig)
}

// Load reads path, or the built-in configuration when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML game config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse game config: %w", err)
	}
	if cfg.PairingCodeTTL <= 0 {
		cfg.PairingCodeTTL = time.Minute
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.TemplateList) == 0 {
		return fmt.Errorf("game config has no templates")
	}
	seen := make(map[string]bool)
	for _, t := range c.TemplateList {
		if t.ID == "" {
			return fmt.Errorf("template without id")
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate template id %q", t.ID)
		}
		seen[t.ID] = true
		if len(t.Questions) == 0 {
			return fmt.Errorf("template %q has no questions", t.ID)
		}
		for _, q := range t.Questions {
			if n := len(q.FixedOptions); n != 0 && n < models.RankingSize {
				return fmt.Errorf("template %q: question %q needs at least %d fixed options", t.ID, q.Text, models.RankingSize)
			}
		}
	}
	if c.DefaultTemplate == "" {
		c.DefaultTemplate = c.TemplateList[0].ID
	}
	if !seen[c.DefaultTemplate] {
		return fmt.Errorf("default template %q not defined", c.DefaultTemplate)
	}
	return nil
}

// Templates returns all templates in file order.
func (c *Config) Templates() []Template {
	return c.TemplateList
}

// Template returns the template with id, or the default one for "".
func (c *Config) Template(id string) (*Template, error) {
	if id == "" {
		id = c.DefaultTemplate
	}
	for i := range c.TemplateList {
		if c.TemplateList[i].ID == id {
			return &c.TemplateList[i], nil
		}
	}
	return nil, apperr.NotFoundf("template %q not found", id)
}
