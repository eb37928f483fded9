package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/lifedash/internal/client/events"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) getStatus() string {
	parts := make([]string, 0, 3)
	if p := a.session.Principal(); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, a.store.Scope())
	if m := a.mode(); m != "" {
		parts = append(parts, string(m))
	}
	return "(" + strings.Join(parts, " ") + ")"
}

func formatEntry(e models.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %-12s %s", e.ID, e.Domain, e.Title)
	if e.Description != "" {
		fmt.Fprintf(&b, " - %s", e.Description)
	}
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			fmt.Fprintf(&b, " %s", raw)
		}
	}
	return b.String()
}

func (a *App) printEvent(e events.Event) {
	domain := e.Domain
	if domain == "" {
		domain = "all"
	}
	if e.Reverted {
		a.printf("! %s %s reverted, %d entries\n", domain, e.Action, len(e.Data))
		return
	}
	a.printf("* %s %s, %d entries\n", domain, e.Action, len(e.Data))
}
