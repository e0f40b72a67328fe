package i18n

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/byceps/byceps-sub001/internal/domain"
)

func TestLocalizerFormatsMoneyPerLocale(t *testing.T) {
	l, err := Load("en")
	require.NoError(t, err)

	assert.Equal(t, "24,95 €", l.Money("de", domain.MustMoney("24.95", "EUR")))
	assert.Equal(t, "€24.95", l.Money("en", domain.MustMoney("24.95", "EUR")))
	assert.Equal(t, "1.234,50 €", l.Money("de", domain.MustMoney("1234.5", "EUR")))
	assert.Equal(t, "CHF 10.00", l.Money("en", domain.MustMoney("10", "CHF")))
}

func TestLocalizerResolvesLocales(t *testing.T) {
	l, err := Load("en")
	require.NoError(t, err)

	assert.Equal(t, "de", l.Resolve("de-DE", "en"))
	assert.Equal(t, "de", l.Resolve("fr", "de"))
	assert.Equal(t, "en", l.Resolve("", ""))
	assert.Equal(t, "en", l.Resolve("not a locale", "xx"))
}

func TestLocalizerText(t *testing.T) {
	l, err := Load("en")
	require.NoError(t, err)

	assert.Equal(t, "Hallo Alice,", l.Text("de", "greeting", "Alice"))
	assert.Equal(t, "Hello Alice,", l.Text("en", "greeting", "Alice"))
	assert.Equal(t, "Your order (AB-00001) has been paid.", l.Text("en", "paid_subject", "AB-00001"))
}

func TestLocalizerFallsBackToFallbackCatalog(t *testing.T) {
	fsys := fstest.MapFS{
		"c/en.yaml": {Data: []byte("locale: en\nmessages:\n  hello: \"Hello\"\n  bye: \"Bye\"\n")},
		"c/de.yaml": {Data: []byte("locale: de\nmessages:\n  hello: \"Hallo\"\n")},
	}
	l, err := LoadFS(fsys, "c", "en")
	require.NoError(t, err)

	assert.Equal(t, "Hallo", l.Text("de", "hello"))
	assert.Equal(t, "Bye", l.Text("de", "bye"))
	assert.Equal(t, "2024-03-01", l.Date("de", time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
}

func TestLocalizerDates(t *testing.T) {
	l, err := Load("en")
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "01.03.2024", l.Date("de", at))
	assert.Equal(t, "Mar 1, 2024", l.Date("en", at))
}

func TestLoadRejectsUnknownFallback(t *testing.T) {
	_, err := Load("fr")
	require.Error(t, err)
}
