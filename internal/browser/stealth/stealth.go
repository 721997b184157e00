package stealth

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/searchcheck/internal/config"
)

//go:embed evasions.js
var evasionsTemplate string

const languagesPlaceholder = "__LANGUAGES__"

// Persona defines the browser characteristics to emulate.
type Persona struct {
	UserAgent string
	Platform  string
	Languages []string
	Timezone  string
	Locale    string
}

// DefaultPersona is a desktop Chrome on Windows with a Chinese locale.
var DefaultPersona = Persona{
	UserAgent: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	Platform:  "Win32",
	Languages: []string{"zh-CN", "zh"},
	Timezone:  "Asia/Shanghai",
	Locale:    "zh-CN",
}

// FromConfig builds a Persona from the browser section, falling back to
// DefaultPersona for unset fields.
func FromConfig(cfg config.BrowserConfig) Persona {
	p := DefaultPersona
	if cfg.UserAgent != "" {
		p.UserAgent = cfg.UserAgent
	}
	if cfg.Platform != "" {
		p.Platform = cfg.Platform
	}
	if len(cfg.Languages) > 0 {
		p.Languages = append([]string(nil), cfg.Languages...)
	}
	if cfg.Timezone != "" {
		p.Timezone = cfg.Timezone
	}
	if cfg.Locale != "" {
		p.Locale = cfg.Locale
	}
	return p
}

// AcceptLanguage renders the languages as an Accept-Language header value,
// with descending q-values after the first entry.
func (p Persona) AcceptLanguage() string {
	parts := make([]string, 0, len(p.Languages))
	for i, lang := range p.Languages {
		if i == 0 {
			parts = append(parts, lang)
			continue
		}
		q := 1.0 - 0.1*float64(i)
		if q < 0.1 {
			q = 0.1
		}
		parts = append(parts, fmt.Sprintf("%s;q=%.1f", lang, q))
	}
	return strings.Join(parts, ",")
}

// EvasionsScript returns the init script that hides navigator.webdriver,
// provides window.chrome.runtime and pins navigator.languages.
func (p Persona) EvasionsScript() (string, error) {
	langs, err := jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(p.Languages)
	if err != nil {
		return "", fmt.Errorf("failed to encode languages: %w", err)
	}
	return strings.Replace(evasionsTemplate, languagesPlaceholder, string(langs), 1), nil
}

// Apply returns the CDP actions that make the tab present as the persona.
// The init script is registered before any page script of later documents runs.
func Apply(p Persona, logger *zap.Logger) chromedp.Tasks {
	logger.Debug("Applying browser stealth persona",
		zap.String("userAgent", p.UserAgent),
		zap.String("locale", p.Locale),
		zap.String("timezone", p.Timezone),
	)

	acceptLanguage := p.AcceptLanguage()
	return chromedp.Tasks{
		emulation.SetUserAgentOverride(p.UserAgent).
			WithAcceptLanguage(acceptLanguage).
			WithPlatform(p.Platform),

		chromedp.ActionFunc(func(ctx context.Context) error {
			script, err := p.EvasionsScript()
			if err != nil {
				return err
			}
			if _, err := page.AddScriptToEvaluateOnNewDocument(script).Do(ctx); err != nil {
				return fmt.Errorf("failed to inject evasions script: %w", err)
			}
			return nil
		}),

		emulation.SetTimezoneOverride(p.Timezone),
		emulation.SetLocaleOverride().WithLocale(p.Locale),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": acceptLanguage}),
	}
}
