// Package requesttrace carries who triggered an operation through the
// context so services can stamp CreatedBy, RequestedBy and ApprovedBy.
package requesttrace

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

type ctxKey struct{}

// ActorKind classifies the origin of an operation.
type ActorKind string

const (
	ActorKindUser      ActorKind = "user"
	ActorKindAnonymous ActorKind = "anonymous"
	ActorKindSystem    ActorKind = "system"
)

// MaxActorIDLength bounds identifiers accepted from the gateway header.
const MaxActorIDLength = 128

// AuditInfo is the request-scoped audit record. ActorID is set for users,
// Job names the scheduled or CLI run for system actors.
type AuditInfo struct {
	ActorKind ActorKind
	ActorID   string
	Job       string
	RequestID string
}

// Actor is the value written to audited fields.
func (a AuditInfo) Actor() string {
	switch a.ActorKind {
	case ActorKindUser:
		if a.ActorID != "" {
			return a.ActorID
		}
	case ActorKindSystem:
		if a.Job != "" {
			return "system:" + a.Job
		}
		return string(ActorKindSystem)
	}
	return string(ActorKindAnonymous)
}

// IntoContext returns a copy of ctx carrying audit.
func IntoContext(ctx context.Context, audit AuditInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, audit)
}

// FromContext reports the AuditInfo stored on ctx, if any.
func FromContext(ctx context.Context) (AuditInfo, bool) {
	if ctx == nil {
		return AuditInfo{}, false
	}
	audit, ok := ctx.Value(ctxKey{}).(AuditInfo)
	return audit, ok
}

// FromContextOrAnonymous falls back to an anonymous record.
func FromContextOrAnonymous(ctx context.Context) AuditInfo {
	if audit, ok := FromContext(ctx); ok {
		return audit
	}
	return Anonymous("")
}

// ActorFromContext is shorthand for FromContextOrAnonymous(ctx).Actor().
func ActorFromContext(ctx context.Context) string {
	return FromContextOrAnonymous(ctx).Actor()
}

// ForUser builds the record for an operator already authenticated upstream.
// The id must be non-empty, printable and free of whitespace.
func ForUser(actorID, requestID string) (AuditInfo, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return AuditInfo{}, fmt.Errorf("actor id is required")
	}
	if len(actorID) > MaxActorIDLength {
		return AuditInfo{}, fmt.Errorf("actor id exceeds %d characters", MaxActorIDLength)
	}
	for _, r := range actorID {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) {
			return AuditInfo{}, fmt.Errorf("actor id %q contains invalid characters", actorID)
		}
	}
	return AuditInfo{ActorKind: ActorKindUser, ActorID: actorID, RequestID: requestID}, nil
}

// Anonymous builds the record for requests that carry no actor.
func Anonymous(requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindAnonymous, RequestID: requestID}
}

// System builds the record for background work such as the late sweep.
func System(job, requestID string) AuditInfo {
	return AuditInfo{ActorKind: ActorKindSystem, Job: job, RequestID: requestID}
}
