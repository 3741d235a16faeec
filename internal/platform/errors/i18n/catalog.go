// Package i18n maps data error codes to user-facing text.
package i18n

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// BaseLocale is the fallback locale for every lookup.
const BaseLocale = "en-US"

// Code is a catalog key (duplicated from errors.MessageKey to avoid a cycle).
type Code = string

// Catalog maps error codes to messages for a specific locale.
type Catalog struct {
	locale   string
	tag      language.Tag
	messages map[Code]string
	printer  *message.Printer
}

var (
	catalogsMu sync.RWMutex
	// catalogs holds registered catalogs by locale.
	catalogs = map[string]*Catalog{
		BaseLocale: enUSCatalog,
		"pt-BR":    ptBRCatalog,
	}
)

// GetCatalog returns the catalog for the given locale.
// Falls back to the closest supported locale and then to en-US.
func GetCatalog(locale string) *Catalog {
	requested := strings.TrimSpace(locale)
	if requested == "" {
		requested = BaseLocale
	}
	if c, ok := lookupCatalog(requested); ok {
		return c
	}

	tag, err := language.Parse(requested)
	if err != nil {
		return mustBase()
	}
	supported, tags := supportedTags()
	_, index, confidence := language.NewMatcher(tags).Match(tag)
	if confidence == language.No || index < 0 || index >= len(supported) {
		return mustBase()
	}
	return supported[index]
}

// Locale returns the locale of this catalog.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code.
// Falls back to the base catalog and then to the code itself.
func (c *Catalog) Format(code Code) string {
	if _, ok := c.messages[code]; ok {
		return c.printer.Sprintf(code)
	}
	base := mustBase()
	if _, ok := base.messages[code]; ok {
		return base.printer.Sprintf(code)
	}
	return code
}

// RegisterCatalog registers a catalog for the given locale.
func RegisterCatalog(locale string, cat *Catalog) {
	catalogsMu.Lock()
	defer catalogsMu.Unlock()
	catalogs[locale] = cat
}

// NewCatalog creates a new catalog with the given locale and messages.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	cloned := make(map[Code]string, len(messages))
	for key, value := range messages {
		cloned[key] = value
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	builder := catalog.NewBuilder(catalog.Fallback(tag))
	for key, value := range cloned {
		_ = builder.SetString(tag, key, value)
	}
	return &Catalog{
		locale:   locale,
		tag:      tag,
		messages: cloned,
		printer:  message.NewPrinter(tag, message.Catalog(builder)),
	}
}

func lookupCatalog(locale string) (*Catalog, bool) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	cat, ok := catalogs[locale]
	return cat, ok
}

func mustBase() *Catalog {
	cat, ok := lookupCatalog(BaseLocale)
	if !ok {
		return enUSCatalog
	}
	return cat
}

// supportedTags lists catalogs with the base locale first so the matcher
// falls back to it.
func supportedTags() ([]*Catalog, []language.Tag) {
	catalogsMu.RLock()
	defer catalogsMu.RUnlock()
	out := []*Catalog{catalogs[BaseLocale]}
	tags := []language.Tag{catalogs[BaseLocale].tag}
	for locale, cat := range catalogs {
		if locale == BaseLocale {
			continue
		}
		out = append(out, cat)
		tags = append(tags, cat.tag)
	}
	return out, tags
}
