// Package identity merges base user records with role-specific records into
// one display profile per participant id.
package identity

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"carematch/internal/store"
)

// Profile is the resolved display profile for one participant.
type Profile struct {
	ID             string     `json:"id"`
	DisplayName    string     `json:"display_name"`
	Email          string     `json:"email"`
	PhotoURL       string     `json:"photo_url"`
	Role           string     `json:"role"`
	IsOnline       bool       `json:"is_online"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// Name resolves the display name with the fallback chain: merged name,
// then the email's local part, then the capitalized role tag, then a
// generic label.
func (p *Profile) Name() string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	if p.Email != "" {
		if at := strings.Index(p.Email, "@"); at > 0 {
			return p.Email[:at]
		}
	}
	if p.Role != "" {
		return CapitalizeRole(p.Role)
	}
	return "Someone"
}

// CapitalizeRole turns a role tag into a display label ("worker" → "Worker").
func CapitalizeRole(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}

type Resolver struct {
	profiles store.ProfileRepository
	log      *zap.Logger
}

func NewResolver(profiles store.ProfileRepository, log *zap.Logger) *Resolver {
	return &Resolver{profiles: profiles, log: log}
}

// Resolve maps each requested id to its merged profile. Base rows are
// seeded first; role tables only add or override, never delete. Missing
// ids produce no entry and downstream display falls back to a generic
// label.
func (r *Resolver) Resolve(ctx context.Context, ids []string) (map[string]*Profile, error) {
	rows, err := r.profiles.Resolve(ctx, ids)
	if err != nil {
		return nil, err
	}
	return Merge(rows), nil
}

// Merge applies the overlay rules to one resolve result set. Last write
// wins per source table; name priority is explicit full name, then
// first+last concatenation, else the field stays unset.
func Merge(rows *store.ProfileRows) map[string]*Profile {
	merged := make(map[string]*Profile)

	for _, base := range rows.Base {
		merged[base.ID] = &Profile{
			ID:             base.ID,
			DisplayName:    base.DisplayName,
			Email:          base.Email,
			PhotoURL:       base.PhotoURL,
			Role:           base.Role,
			IsOnline:       base.IsOnline,
			LastActivityAt: base.LastActivityAt,
		}
	}

	for _, w := range rows.Workers {
		p, ok := merged[w.ProfileID]
		if !ok {
			p = &Profile{ID: w.ProfileID, Role: store.RoleWorker}
			merged[w.ProfileID] = p
		}
		if name := workerName(w); name != "" {
			p.DisplayName = name
		}
		if w.PhotoURL != "" {
			p.PhotoURL = w.PhotoURL
		}
	}

	for _, a := range rows.Agencies {
		p, ok := merged[a.ProfileID]
		if !ok {
			p = &Profile{ID: a.ProfileID, Role: store.RoleAgency}
			merged[a.ProfileID] = p
		}
		if a.AgencyName != "" {
			p.DisplayName = a.AgencyName
		}
		if a.LogoURL != "" {
			p.PhotoURL = a.LogoURL
		}
	}

	return merged
}

func workerName(w store.WorkerProfile) string {
	if w.FullName != "" {
		return w.FullName
	}
	name := strings.TrimSpace(w.FirstName + " " + w.LastName)
	return name
}
