package web

import (
	"time"

	appbsky "github.com/bluesky-social/indigo/api/bsky"
	"github.com/bluesky-social/indigo/atproto/syntax"
)

// JavaScript-style ISO 8601 timestamp (millisecond precision, UTC)
const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// Profile is the cached, denormalized view of a signed-in account. Optional fields are null in JSON when unknown.
type Profile struct {
	DID         string  `json:"did"`
	Handle      string  `json:"handle"`
	DisplayName *string `json:"displayName"`
	Avatar      *string `json:"avatar"`
	Description *string `json:"description"`
	SignedInAt  string  `json:"signedInAt"`
}

// newProfile merges the lookups done at sign-in. Handle precedence: public profile handle, then the handle argument (from the repo description, or the raw DID).
func newProfile(did syntax.DID, handle string, pv *appbsky.ActorDefs_ProfileViewDetailed, now time.Time) Profile {
	p := Profile{
		DID:        did.String(),
		Handle:     handle,
		SignedInAt: now.UTC().Format(isoMillisLayout),
	}
	if pv != nil {
		if pv.Handle != "" {
			p.Handle = pv.Handle
		}
		p.DisplayName = nonEmpty(pv.DisplayName)
		p.Avatar = nonEmpty(pv.Avatar)
		p.Description = nonEmpty(pv.Description)
	}
	return p
}

func nonEmpty(s *string) *string {
	if s == nil || *s == "" {
		return nil
	}
	v := *s
	return &v
}

// profileView is the template-friendly form of a Profile (no pointers).
type profileView struct {
	DID         string
	Handle      string
	DisplayName string
	Avatar      string
	Description string
	SignedInAt  string
}

func (p Profile) view() profileView {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	v := profileView{
		DID:         p.DID,
		Handle:      p.Handle,
		DisplayName: deref(p.DisplayName),
		Avatar:      deref(p.Avatar),
		Description: deref(p.Description),
		SignedInAt:  p.SignedInAt,
	}
	if v.Handle == "" {
		v.Handle = "N/A"
	}
	return v
}
