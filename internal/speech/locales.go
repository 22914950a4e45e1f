package speech

import (
	"context"
	"log/slog"
	"sort"
)

const localeCacheKey = "locales"

// Locales returns the recognition locales the service supports, sorted by
// code. The catalog is scraped from the v3.2 model list and cached; fetch
// failures serve a fallback of common locales without caching it, so the
// next call retries the service.
func (c *Client) Locales(ctx context.Context) ([]LocaleInfo, error) {
	if cached, ok := c.locales.Get(localeCacheKey); ok {
		return cached.([]LocaleInfo), nil
	}

	v, ok, err := c.getJSON(ctx, c.modelsBaseURL+"/models")
	if err != nil {
		return nil, err
	}
	if !ok {
		return fallbackLocales(), nil
	}

	values, _ := v.Field("values").AsArray()
	seen := make(map[string]bool)
	locales := make([]LocaleInfo, 0, len(values))
	for _, mv := range values {
		code, _ := mv.Field("locale").AsString()
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		name, _ := mv.Field("displayName").AsString()
		locales = append(locales, LocaleInfo{Code: code, Name: name})
	}
	if len(locales) == 0 {
		slog.Warn("model catalog listed no locales, serving fallback list")
		return fallbackLocales(), nil
	}
	sort.Slice(locales, func(i, j int) bool { return locales[i].Code < locales[j].Code })

	c.locales.SetDefault(localeCacheKey, locales)
	slog.Info("locale catalog refreshed", "count", len(locales))
	return locales, nil
}

// LocaleCodes returns just the locale codes, for callers that do not need
// display names.
func (c *Client) LocaleCodes(ctx context.Context) ([]string, error) {
	locales, err := c.Locales(ctx)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(locales))
	for i, l := range locales {
		codes[i] = l.Code
	}
	return codes, nil
}

// fallbackLocales covers the locales most commonly requested for batch
// diarization, served when the model catalog is unreachable.
func fallbackLocales() []LocaleInfo {
	return []LocaleInfo{
		{Code: "en-US", Name: "English (United States)"},
		{Code: "en-GB", Name: "English (United Kingdom)"},
		{Code: "en-AU", Name: "English (Australia)"},
		{Code: "en-CA", Name: "English (Canada)"},
		{Code: "en-IN", Name: "English (India)"},
		{Code: "es-ES", Name: "Spanish (Spain)"},
		{Code: "es-MX", Name: "Spanish (Mexico)"},
		{Code: "fr-FR", Name: "French (France)"},
		{Code: "fr-CA", Name: "French (Canada)"},
		{Code: "de-DE", Name: "German (Germany)"},
		{Code: "it-IT", Name: "Italian (Italy)"},
		{Code: "pt-BR", Name: "Portuguese (Brazil)"},
		{Code: "pt-PT", Name: "Portuguese (Portugal)"},
		{Code: "ja-JP", Name: "Japanese (Japan)"},
		{Code: "ko-KR", Name: "Korean (Korea)"},
		{Code: "zh-CN", Name: "Chinese (Mandarin, Simplified)"},
		{Code: "zh-HK", Name: "Chinese (Cantonese, Traditional)"},
		{Code: "zh-TW", Name: "Chinese (Taiwanese Mandarin)"},
		{Code: "nl-NL", Name: "Dutch (Netherlands)"},
		{Code: "ru-RU", Name: "Russian (Russia)"},
		{Code: "ar-SA", Name: "Arabic (Saudi Arabia)"},
		{Code: "hi-IN", Name: "Hindi (India)"},
		{Code: "sv-SE", Name: "Swedish (Sweden)"},
		{Code: "da-DK", Name: "Danish (Denmark)"},
		{Code: "fi-FI", Name: "Finnish (Finland)"},
		{Code: "no-NO", Name: "Norwegian (Norway)"},
		{Code: "pl-PL", Name: "Polish (Poland)"},
		{Code: "tr-TR", Name: "Turkish (Turkey)"},
		{Code: "th-TH", Name: "Thai (Thailand)"},
		{Code: "id-ID", Name: "Indonesian (Indonesia)"},
	}
}
