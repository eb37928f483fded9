package cli

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/lifedash/internal/client/engine"
	"github.com/dmitrijs2005/lifedash/internal/client/scope"
	"github.com/dmitrijs2005/lifedash/internal/common"
	"github.com/dmitrijs2005/lifedash/internal/models"
)

func usage(s string) error {
	return fmt.Errorf("usage: %s", s)
}

// domainArg maps the "all" keyword to the all-domains view.
func domainArg(s string) string {
	if s == "all" {
		return ""
	}
	return s
}

func (a *App) Login(ctx context.Context) error {
	tok, err := GetToken(a.out)
	if err != nil {
		return err
	}
	if err := a.session.SetToken(tok); err != nil {
		return err
	}
	a.store.Refresh(ctx)
	a.printf("signed in as %s\n", a.session.Principal())
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.session.SetToken(""); err != nil {
		return err
	}
	a.store.Refresh(ctx)
	a.printf("signed out, cached entries stay readable\n")
	return nil
}

func (a *App) Open(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("open <domain>")
	}
	a.store.Open(ctx, domainArg(args[0]))
	return nil
}

func (a *App) List(_ context.Context, args []string) error {
	domain := ""
	if len(args) > 0 {
		domain = domainArg(args[0])
	}
	entries := a.store.List(domain)
	if len(entries) == 0 {
		a.printf("(no entries)\n")
		return nil
	}
	for _, e := range entries {
		a.printf("%s\n", formatEntry(e))
	}
	return nil
}

func (a *App) Add(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usage("add <domain> <title...> [k=v ...]")
	}
	meta, words, err := ParseAssignments(args[1:])
	if err != nil {
		return err
	}

	e, err := a.store.Create(ctx, args[0], engine.NewEntry{
		Title:    strings.Join(words, " "),
		Metadata: meta,
	})
	if err != nil {
		return err
	}
	a.printf("created %s\n", e.ID)
	return nil
}

func (a *App) Set(ctx context.Context, args []string) error {
	if len(args) < 3 {
		return usage("set <domain> <id> k=v ...")
	}
	values, words, err := ParseAssignments(args[2:])
	if err != nil {
		return err
	}
	if len(words) > 0 {
		return fmt.Errorf("expected name=value, got %q", words[0])
	}

	e, err := a.store.Update(ctx, args[0], args[1], patchFromValues(values))
	if err != nil {
		return err
	}
	a.printf("updated %s\n", e.ID)
	return nil
}

// patchFromValues routes title and description to their fields; every other
// name is a metadata key, null deleting it.
func patchFromValues(values map[string]any) models.Patch {
	var p models.Patch
	for k, v := range values {
		switch k {
		case "title":
			s := stringValue(v)
			p.Title = &s
		case "description":
			s := stringValue(v)
			p.Description = &s
		default:
			if p.Metadata == nil {
				p.Metadata = map[string]any{}
			}
			p.Metadata[k] = v
		}
	}
	return p
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func (a *App) Remove(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usage("rm <domain> <id...>")
	}
	domain, ids := args[0], args[1:]

	if len(ids) == 1 {
		if err := a.store.Delete(ctx, domain, ids[0]); err != nil {
			return err
		}
		a.printf("deleted %s\n", ids[0])
		return nil
	}

	res := a.store.DeleteMany(ctx, domain, ids)
	a.printf("deleted %d, failed %d\n", len(res.Succeeded), len(res.Failed))
	return res.Err()
}

func (a *App) Reload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return usage("reload <domain>")
	}
	return a.store.ReloadDomain(ctx, domainArg(args[0]))
}

func (a *App) Scope(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.printf("scope: %s\n", a.store.Scope())
		return nil
	}
	if err := a.settings.SetActiveScope(ctx, args[0]); err != nil {
		return err
	}
	a.store.SwitchScope(ctx, args[0])
	a.printf("scope: %s\n", a.store.Scope())
	return nil
}

func (a *App) Profiles(ctx context.Context, args []string) error {
	s, err := a.settings.Settings(ctx)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if len(s.Profiles) == 0 {
			a.printf("(no profiles)\n")
		}
		for _, p := range s.Profiles {
			mark := " "
			if p.Active {
				mark = "*"
			}
			a.printf("%s %s %s\n", mark, p.ID, p.Name)
		}
		return nil
	}

	switch {
	case args[0] == "add" && len(args) >= 2:
		for _, p := range s.Profiles {
			if p.ID == args[1] {
				return fmt.Errorf("profile %s already exists", args[1])
			}
		}
		s.Profiles = append(s.Profiles, scope.Profile{ID: args[1], Name: strings.Join(args[2:], " ")})
		return a.settings.Save(s)

	case args[0] == "use" && len(args) == 2:
		found := false
		for i := range s.Profiles {
			s.Profiles[i].Active = s.Profiles[i].ID == args[1]
			found = found || s.Profiles[i].Active
		}
		if !found {
			return fmt.Errorf("profile %s: %w", args[1], common.ErrNotFound)
		}
		// An explicit scope would shadow the profile choice.
		s.ActiveScope = ""
		if err := a.settings.Save(s); err != nil {
			return err
		}
		a.printf("scope: %s\n", a.store.ResolveScope(ctx))
		return nil
	}

	return usage("profiles [add <id> [name] | use <id>]")
}

func (a *App) Notes(ctx context.Context) error {
	s, err := a.settings.Settings(ctx)
	if err != nil {
		return err
	}
	text, err := GetMultiline(a.reader, "Notes:", a.out)
	if err != nil {
		return err
	}
	s.Notes = text
	return a.settings.Save(s)
}

// Attach uploads a file to object storage and records its key in the
// entry's "attachments" metadata list.
func (a *App) Attach(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return usage("attach <domain> <id> <file>")
	}
	domain, id, path := args[0], args[1], args[2]

	e, ok := a.store.Get(domain, id)
	if !ok {
		return fmt.Errorf("entry %s: %w", id, common.ErrNotFound)
	}

	body, err := a.readFile(path)
	if err != nil {
		return err
	}
	contentType := http.DetectContentType(body)

	p, err := a.session.PresignUpload(ctx, id, contentType)
	if err != nil {
		return err
	}
	if err := a.upload(ctx, p, contentType, body); err != nil {
		return err
	}

	var list []any
	if existing, ok := e.Metadata["attachments"].([]any); ok {
		list = append(list, existing...)
	}
	list = append(list, map[string]any{
		"key":          p.Key,
		"name":         filepath.Base(path),
		"content_type": contentType,
		"size":         len(body),
	})

	if _, err := a.store.Update(ctx, domain, id, models.Patch{Metadata: map[string]any{"attachments": list}}); err != nil {
		return err
	}
	a.printf("attached %s\n", p.Key)
	return nil
}
