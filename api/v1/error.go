package api_v1

import (
	"fmt"

	"github.com/xkayo32/pydevbot/model"
)

// TemplateNotFoundError is fatal for the session that hit it: an
// unknown component type means a corrupt or unsupported graph.
type TemplateNotFoundError struct {
	NodeType model.NodeType
}

func (e TemplateNotFoundError) Error() string {
	return fmt.Sprintf("no component template registered for type %s", e.NodeType)
}

// InvalidSessionStateError rejects caller misuse, e.g. submitting
// input to a session that is not waiting. The session is unchanged.
type InvalidSessionStateError struct {
	SessionId string
	Status    model.SessionStatus
}

func (e InvalidSessionStateError) Error() string {
	return fmt.Sprintf("session %s is %s, operation not allowed", e.SessionId, e.Status)
}

// ConflictError reports lock contention on a session. The caller
// should retry the whole operation; no partial state was applied.
type ConflictError struct {
	SessionId string
}

func (e ConflictError) Error() string {
	return fmt.Sprintf("session %s is busy, retry", e.SessionId)
}

func IsConflict(err error) bool {
	_, ok := err.(ConflictError)
	return ok
}

func IsInvalidSessionState(err error) bool {
	_, ok := err.(InvalidSessionStateError)
	return ok
}

func IsTemplateNotFound(err error) bool {
	_, ok := err.(TemplateNotFoundError)
	return ok
}
