// Package spellbook loads declarative spell definitions from YAML and turns them into
// transmogrifier spells.
package spellbook

import (
	"bytes"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path"

	"chat-relay/errors"
	"chat-relay/language"
	"chat-relay/transmogrifier"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultName is the embedded spellbook used when nothing else is configured.
const DefaultName = "gender-swap"

//go:embed books/*.yaml
var books embed.FS

var validate = validator.New()

const (
	TypeSubstitute = "substitute"
	TypeCensor     = "censor"
	TypeLanguages  = "languages"
	TypeDrop       = "drop"
)

// Definition describes one spell. Only the fields relevant to its Type are read.
type Definition struct {
	Name string `yaml:"name" validate:"required"`
	Type string `yaml:"type" validate:"required,oneof=substitute censor languages drop"`

	// substitute
	MaxDistance   int                     `yaml:"max_distance" validate:"gte=0"`
	CaseSensitive bool                    `yaml:"case_sensitive"`
	StopPhrases   []string                `yaml:"stop_phrases"`
	Substitutions []language.Substitution `yaml:"substitutions" validate:"required_if=Type substitute,dive"`

	// censor
	Words       []string `yaml:"words" validate:"required_if=Type censor"`
	Replacement string   `yaml:"replacement" validate:"omitempty,len=1"`

	// languages, ISO 639-1 codes
	Languages []string `yaml:"languages" validate:"required_if=Type languages,dive,len=2"`

	// drop, remote kind tags
	Kinds []string `yaml:"kinds" validate:"required_if=Type drop"`
}

// Spellbook is an ordered list of spell definitions, cast in file order.
type Spellbook struct {
	Spells []Definition `yaml:"spells" validate:"required,min=1,dive"`
}

// Parse decodes and validates a YAML spellbook. Unknown fields are rejected.
func Parse(data []byte) (*Spellbook, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var book Spellbook
	if err := dec.Decode(&book); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidSpellbook, err)
	}
	if err := validate.Struct(book); err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidSpellbook, err)
	}
	return &book, nil
}

// LoadFile reads a spellbook from disk.
func LoadFile(filepath string) (*Spellbook, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// LoadEmbedded reads one of the spellbooks shipped with the binary, by name.
func LoadEmbedded(name string) (*Spellbook, error) {
	data, err := books.ReadFile(path.Join("books", name+".yaml"))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Load reads the spellbook at filepath, or the named embedded one when filepath is empty.
func Load(filepath, name string) (*Spellbook, error) {
	if filepath != "" {
		return LoadFile(filepath)
	}
	if name == "" {
		name = DefaultName
	}
	return LoadEmbedded(name)
}

// Compile builds the spells in declaration order.
func (b *Spellbook) Compile(log *slog.Logger) ([]transmogrifier.Spell, error) {
	spells := make([]transmogrifier.Spell, 0, len(b.Spells))
	for _, def := range b.Spells {
		spell, err := def.compile(log)
		if err != nil {
			return nil, fmt.Errorf("spell %q: %w", def.Name, err)
		}
		spells = append(spells, spell)
	}
	log.Info("Spellbook compiled", "spells", b.Names())
	return spells, nil
}

func (b *Spellbook) Names() []string {
	names := make([]string, len(b.Spells))
	for i, def := range b.Spells {
		names[i] = def.Name
	}
	return names
}

func (d Definition) compile(log *slog.Logger) (transmogrifier.Spell, error) {
	switch d.Type {
	case TypeSubstitute:
		tokenizer := language.NewTokenizer(d.StopPhrases, d.CaseSensitive)
		substitutions := language.NewSubstitutionMap(d.Substitutions,
			language.WithMaxDistance(d.MaxDistance),
			language.WithCaseSensitivity(d.CaseSensitive))
		return Substitute(tokenizer, substitutions), nil
	case TypeCensor:
		return NewCensor(d.Words, d.replacement(), log)
	case TypeLanguages:
		return Languages(d.Languages...), nil
	case TypeDrop:
		kinds, err := parseKinds(d.Kinds)
		if err != nil {
			return nil, err
		}
		return DropKinds(kinds...), nil
	default:
		return nil, fmt.Errorf("%w: %s", errors.ErrUnknownSpell, d.Type)
	}
}

func (d Definition) replacement() rune {
	for _, r := range d.Replacement {
		return r
	}
	return '*'
}
