package extract

import (
	"strings"

	"github.com/dbbuilder/termkeep/internal/winsys"
)

// terminalControlNames are the child controls Windows Terminal publishes its
// pane content under, in preference order.
var terminalControlNames = []string{"Terminal", "TerminalTabContent", "TermControl"}

// legacyPropertyKeys are the accessibility properties that may carry window
// content on legacy console hosts.
var legacyPropertyKeys = []string{"Value", "Text", "Name", "LegacyIAccessible.Value"}

const (
	minEditLen   = 10 // below this, edit-control text is chrome, not content
	minLegacyLen = 5
	minTitleLen  = 5
)

// strategy attempts to read visible text from a connected window.
// Strategies are tried in priority order until one yields non-empty content.
type strategy interface {
	Name() string
	Read(conn winsys.Conn) (string, bool)
}

// terminalControlStrategy reads the named pane control of a modern terminal
// host.
type terminalControlStrategy struct{}

func (terminalControlStrategy) Name() string { return "terminal_control" }

func (terminalControlStrategy) Read(conn winsys.Conn) (string, bool) {
	text, ok := conn.NamedControlText(terminalControlNames)
	if !ok || strings.TrimSpace(text) == "" {
		return "", false
	}
	return text, true
}

// editControlStrategy reads editable-text children, requiring enough content
// to rule out input boxes and other chrome.
type editControlStrategy struct{}

func (editControlStrategy) Name() string { return "edit_control" }

func (editControlStrategy) Read(conn winsys.Conn) (string, bool) {
	text, ok := conn.EditChildrenText()
	if !ok || len(strings.TrimSpace(text)) <= minEditLen {
		return "", false
	}
	return text, true
}

// legacyPropertiesStrategy probes well-known accessibility properties on the
// window itself.
type legacyPropertiesStrategy struct{}

func (legacyPropertiesStrategy) Name() string { return "legacy_properties" }

func (legacyPropertiesStrategy) Read(conn winsys.Conn) (string, bool) {
	for _, key := range legacyPropertyKeys {
		if text, ok := conn.LegacyProperty(key); ok {
			if len(strings.TrimSpace(text)) > minLegacyLen {
				return text, true
			}
		}
	}
	return "", false
}

// windowTextStrategy falls back to the window's own text, usually the title.
type windowTextStrategy struct{}

func (windowTextStrategy) Name() string { return "window_text" }

func (windowTextStrategy) Read(conn winsys.Conn) (string, bool) {
	text, ok := conn.Title()
	if !ok || len(strings.TrimSpace(text)) <= minTitleLen {
		return "", false
	}
	return text, true
}

// orderedStrategies returns the extraction chain in priority order.
func orderedStrategies() []strategy {
	return []strategy{
		terminalControlStrategy{},
		editControlStrategy{},
		legacyPropertiesStrategy{},
		windowTextStrategy{},
	}
}
