package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig holds user overrides for remappable bindings; blank fields keep defaults.
type KeyConfig struct {
	PrevWeek  string
	NextWeek  string
	Today     string
	CycleMode string
	NextScope string
	Details   string
	Reload    string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit       key.Binding
	reload     key.Binding
	toggleHelp key.Binding
	prevWeek   key.Binding
	nextWeek   key.Binding
	today      key.Binding
	cycleMode  key.Binding
	nextScope  key.Binding
	nextTask   key.Binding
	prevTask   key.Binding
	details    key.Binding
	cancel     key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		prevWeek:   key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "previous week")),
		nextWeek:   key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "next week")),
		today:      key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "today")),
		cycleMode:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "personal/team/project")),
		nextScope:  key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "next team or project")),
		nextTask:   key.NewBinding(key.WithKeys("tab", "j", "down"), key.WithHelp("tab/j", "next task")),
		prevTask:   key.NewBinding(key.WithKeys("shift+tab", "k", "up"), key.WithHelp("shift+tab/k", "previous task")),
		details:    key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task details")),
		cancel:     key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag")),
	}
}

// applyConfig rebinds the remappable keys from cfg.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.prevWeek, cfg.PrevWeek, "h", "previous week")
	configureBinding(&k.nextWeek, cfg.NextWeek, "l", "next week")
	configureBinding(&k.today, cfg.Today, "t", "today")
	configureBinding(&k.cycleMode, cfg.CycleMode, "m", "personal/team/project")
	configureBinding(&k.nextScope, cfg.NextScope, "s", "next team or project")
	configureBinding(&k.details, cfg.Details, "i", "task details")
	configureBinding(&k.reload, cfg.Reload, "r", "reload")
}

// configureBinding replaces a binding only when an override is present.
func configureBinding(b *key.Binding, raw, fallback, desc string) {
	if strings.TrimSpace(raw) == "" {
		return
	}
	keys, help := parseBindingKeys(raw, fallback)
	b.SetKeys(keys...)
	b.SetHelp(help, desc)
}

// parseBindingKeys maps a configured key onto the matcher strings bubbletea reports.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = fallback
	}
	if raw == "space" || raw == " " {
		return []string{" ", "space"}, "space"
	}
	if utf8.RuneCountInString(raw) == 1 {
		r, _ := utf8.DecodeRuneInString(raw)
		if unicode.IsUpper(r) {
			return []string{raw, "shift+" + string(unicode.ToLower(r))}, raw
		}
		return []string{raw}, raw
	}
	return []string{strings.ToLower(raw)}, raw
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.prevWeek, k.nextWeek, k.cycleMode, k.details, k.toggleHelp, k.quit}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.prevWeek, k.nextWeek, k.today, k.cycleMode, k.nextScope},
		{k.nextTask, k.prevTask, k.details, k.cancel},
		{k.reload, k.toggleHelp, k.quit},
	}
}
