// Package contextbuilder assembles the evaluation context for a single
// authentication step from the session record and request metadata.
package contextbuilder

import (
	"context"
	"time"

	"github.com/mssola/useragent"

	"github.com/fossabot/authrim-sub007/internal/flow/models"
	"github.com/fossabot/authrim-sub007/pkg/requestcontext"
)

// Input carries everything the builder turns into an evaluation context.
// Form, Risk, PrevNode and Variables arrive as decoded JSON and pass through
// untouched; the engine applies its own traversal guards when reading them.
type Input struct {
	Session   models.Session
	RemoteIP  string
	UserAgent string
	RequestID string
	Form      map[string]any
	Risk      map[string]any
	PrevNode  map[string]any
	Variables map[string]any
	Ext       map[string]models.Section
}

// Builder produces a fresh Context per step. Request time and device
// identifiers come from the request context; tests pin them through the
// requestcontext setters.
type Builder struct{}

func New() *Builder {
	return &Builder{}
}

// Build assembles the context. Sections with no data stay nil so conditions
// against them resolve to absent rather than matching empty objects.
func (b *Builder) Build(ctx context.Context, in Input) *models.Context {
	return &models.Context{
		User:      userSection(in.Session),
		Device:    deviceSection(ctx, in.UserAgent),
		Request:   requestSection(ctx, in),
		Risk:      models.Section(in.Risk),
		Form:      models.Section(in.Form),
		PrevNode:  models.Section(in.PrevNode),
		Variables: models.Section(in.Variables),
		Ext:       in.Ext,
	}
}

func userSection(session models.Session) models.Section {
	if session.UserID.IsNil() {
		return nil
	}
	return models.Section{
		"id":       session.UserID.String(),
		"tenantId": session.TenantID.String(),
	}
}

// deviceSection parses the user agent string into the signals conditions
// commonly branch on, plus the device identifiers captured by the HTTP
// middleware. No user agent and no identifiers yields no section at all.
func deviceSection(ctx context.Context, raw string) models.Section {
	deviceID := requestcontext.DeviceID(ctx)
	fingerprint := requestcontext.DeviceFingerprint(ctx)
	if raw == "" && deviceID == "" && fingerprint == "" {
		return nil
	}

	section := models.Section{}
	if deviceID != "" {
		section["id"] = deviceID
	}
	if fingerprint != "" {
		section["fingerprint"] = fingerprint
	}
	if raw == "" {
		return section
	}

	ua := useragent.New(raw)
	browser, browserVersion := ua.Browser()
	section["userAgent"] = raw
	section["os"] = ua.OS()
	section["platform"] = ua.Platform()
	section["browser"] = browser
	section["browserVersion"] = browserVersion
	section["mobile"] = ua.Mobile()
	section["bot"] = ua.Bot()
	return section
}

func requestSection(ctx context.Context, in Input) models.Section {
	return models.Section{
		"ip":        in.RemoteIP,
		"requestId": in.RequestID,
		"timestamp": requestcontext.Now(ctx).UTC().Format(time.RFC3339),
	}
}
