package actions

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hivewatch/hivewatch/automod/platform"
	"github.com/hivewatch/hivewatch/automod/settings"
)

// Adds a moderator note about the user, once per user.
type Note struct {
	*Env
}

func (a *Note) Name() string { return ActionNote }

func (a *Note) Enabled(r *Request) bool {
	return r.Settings.NoteEnabled && strings.TrimSpace(r.Settings.NoteTemplate) != "" && r.Target != nil
}

func (a *Note) Execute(ctx context.Context, r *Request) error {
	s := r.Settings
	key := a.Keys.NoteAdded(r.User)
	added, err := a.Store.Exists(ctx, key)
	if err != nil {
		a.Logger.Error("failed to read note marker", "user", r.User, "err", err)
	}
	if added {
		return nil
	}

	label := platform.LabelAbuseWarning
	if s.BanEnabled {
		label = platform.LabelBotBan
	}
	note := platform.ModNote{
		Community: r.Community,
		User:      r.User,
		Note:      render(s.NoteTemplate, varsFor(r)),
		Label:     label,
		ItemID:    r.Target.ID,
		CreatedAt: a.now(),
	}

	var errs []error
	if s.NoteBackend == settings.NoteNative || s.NoteBackend == settings.NoteBoth {
		if err := a.Client.AddModNote(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("adding native note: %w", err))
		}
	}
	if s.NoteBackend == settings.NoteToolbox || s.NoteBackend == settings.NoteBoth {
		tbNote := note
		tbNote.ItemID = r.Target.Permalink
		if err := a.Client.AddToolboxNote(ctx, tbNote); err != nil {
			errs = append(errs, fmt.Errorf("adding toolbox note: %w", err))
		}
	}
	if err := a.Store.Set(ctx, key, strconv.FormatInt(a.now().UnixMilli(), 10), 0); err != nil {
		a.Logger.Error("failed to set note marker", "user", r.User, "err", err)
	}
	a.ScheduleLiveness(ctx, r.User)
	return errors.Join(errs...)
}
