// Package i18n renders localized email strings, amounts and dates. Strings
// live in embedded YAML catalogs keyed by message id and are registered with
// an x/text message catalog, so printf-style verbs work per locale.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"golang.org/x/text/number"
	"gopkg.in/yaml.v3"

	domain "github.com/byceps/byceps-sub001/internal/domain"
)

//go:embed catalogs/*.yaml
var catalogFS embed.FS

type catalogFile struct {
	Locale     string            `yaml:"locale"`
	DateLayout string            `yaml:"date_layout"`
	MoneyStyle string            `yaml:"money_style"`
	Messages   map[string]string `yaml:"messages"`
}

type localeInfo struct {
	tag        language.Tag
	dateLayout string
	symbolLast bool
	messages   map[string]string
}

// Localizer resolves locales against the loaded catalogs.
type Localizer struct {
	locales  map[string]localeInfo
	matcher  language.Matcher
	tags     []language.Tag
	catalog  *catalog.Builder
	fallback string
}

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"JPY": "¥",
}

// Load parses the embedded catalogs. fallback must name one of them.
func Load(fallback string) (*Localizer, error) {
	return LoadFS(catalogFS, "catalogs", fallback)
}

// LoadFS parses every *.yaml file under dir.
func LoadFS(fsys fs.FS, dir string, fallback string) (*Localizer, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read catalogs: %w", err)
	}

	l := &Localizer{
		locales: make(map[string]localeInfo),
		catalog: catalog.NewBuilder(),
	}
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".yaml" {
			continue
		}
		raw, err := fs.ReadFile(fsys, path.Join(dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("i18n: read %s: %w", entry.Name(), err)
		}
		var file catalogFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("i18n: parse %s: %w", entry.Name(), err)
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("i18n: %s: invalid locale %q: %w", entry.Name(), file.Locale, err)
		}
		for key, msg := range file.Messages {
			if err := l.catalog.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("i18n: %s: set %s: %w", entry.Name(), key, err)
			}
		}
		layout := file.DateLayout
		if layout == "" {
			layout = time.DateOnly
		}
		base := baseLocale(tag)
		l.locales[base] = localeInfo{
			tag:        tag,
			dateLayout: layout,
			symbolLast: file.MoneyStyle == "symbol_last",
			messages:   file.Messages,
		}
		l.tags = append(l.tags, tag)
	}

	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if _, ok := l.locales[fallback]; !ok {
		return nil, fmt.Errorf("i18n: fallback locale %q has no catalog", fallback)
	}
	l.fallback = fallback
	l.matcher = language.NewMatcher(l.tags)
	return l, nil
}

func baseLocale(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}

// Resolve returns the supported locale closest to preferred, else the
// closest to fallback, else the loader's fallback.
func (l *Localizer) Resolve(preferred string, fallback string) string {
	for _, candidate := range []string{preferred, fallback} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		tag, err := language.Parse(candidate)
		if err != nil {
			continue
		}
		if _, ok := l.locales[baseLocale(tag)]; ok {
			return baseLocale(tag)
		}
		if matched, _, confidence := l.matcher.Match(tag); confidence >= language.High {
			return baseLocale(matched)
		}
	}
	return l.fallback
}

func (l *Localizer) info(locale string) localeInfo {
	if info, ok := l.locales[locale]; ok {
		return info
	}
	return l.locales[l.fallback]
}

func (l *Localizer) printer(locale string) *message.Printer {
	return message.NewPrinter(l.info(locale).tag, message.Catalog(l.catalog))
}

// Text formats the message stored under key. Keys missing from the
// locale fall back to the fallback catalog, then to the key itself.
func (l *Localizer) Text(locale string, key string, args ...any) string {
	if _, ok := l.info(locale).messages[key]; !ok && locale != l.fallback {
		locale = l.fallback
	}
	return l.printer(locale).Sprintf(key, args...)
}

// Decimal renders value with two fraction digits using the locale's separators.
func (l *Localizer) Decimal(locale string, value float64) string {
	return l.printer(locale).Sprint(number.Decimal(value, number.Scale(2)))
}

// Money renders an amount with the currency symbol placed per locale.
func (l *Localizer) Money(locale string, amount domain.Money) string {
	value, _ := amount.Amount.Round(2).Float64()
	digits := l.Decimal(locale, value)
	symbol, ok := currencySymbols[amount.Currency]
	if !ok {
		symbol = amount.Currency
	}
	if l.info(locale).symbolLast {
		return digits + " " + symbol
	}
	if !ok {
		return symbol + " " + digits
	}
	return symbol + digits
}

// Date renders t with the locale's date layout.
func (l *Localizer) Date(locale string, t time.Time) string {
	return t.Format(l.info(locale).dateLayout)
}

// Locales lists the loaded locales.
func (l *Localizer) Locales() []string {
	out := make([]string, 0, len(l.locales))
	for locale := range l.locales {
		out = append(out, locale)
	}
	return out
}
