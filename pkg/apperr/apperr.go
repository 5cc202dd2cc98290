package apperr

import (
	"errors"
	"fmt"
)

const (
	MetaReason   = "reason"
	MetaStage    = "stage"
	MetaField    = "field"
	MetaTool     = "tool"
	MetaSelector = "selector"
	MetaURL      = "url"
	MetaPath     = "path"

	StageRuntime     = "runtime"
	StageBrowser     = "browser"
	StageContext     = "context"
	StagePage        = "page"
	StageNavigation  = "navigation"
	StageInteraction = "interaction"
	StageScreenshot  = "screenshot"

	CodeInternal        = "internal"
	CodeInvalidArgument = "invalid_argument"
	CodeNotFound        = "not_found"
	CodeUnavailable     = "unavailable"
	CodeTimeout         = "timeout"
	CodeSessionInit     = "session_init"
	CodeBrowserNotReady = "browser_not_ready"
	CodeActionFailed    = "action_failed"
	CodeUnknownTool     = "unknown_tool"
)

type Error struct {
	Op       string
	Code     string
	Err      error
	Metadata map[string]any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Wrap(op, code string, err error, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}

	return &Error{
		Op:       op,
		Code:     code,
		Err:      err,
		Metadata: metadata,
	}
}

func WrapWithReason(op, code string, err error, reason string) error {
	return Wrap(op, code, err, map[string]any{
		MetaReason: reason,
	})
}

func WrapErrorWithReason(op, code, reason string) error {
	return Wrap(op, code, errors.New(reason), map[string]any{
		MetaReason: reason,
	})
}

func InvalidReqError(op, field string, err error) error {
	return Wrap(op, CodeInvalidArgument, err, map[string]any{
		MetaField:  field,
		MetaReason: "invalid_request",
	})
}

// SessionInitError marks a failure while building one stage of the
// runtime -> browser -> context -> page chain.
func SessionInitError(op, stage string, err error) error {
	return Wrap(op, CodeSessionInit, err, map[string]any{
		MetaStage:  stage,
		MetaReason: "session_init_failed",
	})
}
