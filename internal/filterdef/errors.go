package filterdef

import (
	"errors"
	"fmt"

	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Definition error codes (E200-E299)
const (
	ErrCodeParse          = "E200" // document could not be decoded
	ErrCodeUnknownTable   = "E201" // table not declared
	ErrCodeUnknownColumn  = "E202" // column not declared on its table
	ErrCodeInvalidField   = "E203" // malformed field reference
	ErrCodeInvalidNode    = "E204" // condition node without exactly one key
	ErrCodeInvalidQuery   = "E205" // query without tables or bad join kind
	ErrCodeInvalidDialect = "E206" // unknown dialect
	ErrCodeInvalidTable   = "E207" // table declaration problem
)

// DefinitionError reports a problem at a path inside a filter document,
// e.g. query.where.and[1].between.field.
type DefinitionError struct {
	Path    string
	Message string
	Code    string
	Pos     token.Pos // CUE position if available
}

func (e *DefinitionError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: [%s] %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Path, e.Message)
	}
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Path, e.Message)
}

// IsDefinitionError reports whether err wraps a DefinitionError.
func IsDefinitionError(err error) bool {
	var de *DefinitionError
	return errors.As(err, &de)
}

func defErr(code, path, format string, args ...any) *DefinitionError {
	return &DefinitionError{Path: path, Message: fmt.Sprintf(format, args...), Code: code}
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &DefinitionError{Code: ErrCodeParse, Message: err.Error()}
	}

	first := errs[0]
	de := &DefinitionError{Code: ErrCodeParse, Path: "cue", Message: first.Error()}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		de.Pos = positions[0]
	}
	return de
}
