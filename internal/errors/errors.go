// Package errors provides centralized, structured error handling for AAEQ.
//
// Every fallible core operation returns an *EnhancedError built through the
// fluent ErrorBuilder, carrying a component, a category, a machine-readable
// ANP error code (E1xx-E6xx, see Code below) where applicable, and free-form
// context. The package also passes through the standard library errors
// package (Is/As/Unwrap/Join under their own names, New as NewStd, since New
// here is the builder) so call sites that don't need the extra metadata
// need no second import.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

// ErrorCategory groups errors for metrics/telemetry aggregation.
type ErrorCategory string

const (
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryValidation    ErrorCategory = "validation"
	CategoryDeviceIO      ErrorCategory = "device-io"
	CategoryNetwork       ErrorCategory = "network"
	CategoryProtocol      ErrorCategory = "protocol"
	CategoryIntegrity     ErrorCategory = "integrity"
	CategoryClock         ErrorCategory = "clock"
	CategoryDSP           ErrorCategory = "dsp"
	CategoryVolume        ErrorCategory = "volume"
	CategoryResolver      ErrorCategory = "resolver"
	CategoryState         ErrorCategory = "state"
	CategoryLimit         ErrorCategory = "limit"
	CategoryNotFound      ErrorCategory = "not-found"
	CategoryConflict      ErrorCategory = "conflict"
	CategoryResource      ErrorCategory = "resource"
	CategoryGeneric       ErrorCategory = "generic"
)

// Severity mirrors the ANP error message severity field (§6, §7).
type Severity string

const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Code is a three-digit ANP error code with its category letter prefix,
// e.g. "E101", "E306". See spec.md §6 for the registry.
type Code string

// Error code registry (spec.md §6, §7).
const (
	CodeNetworkUnreachable Code = "E101" // fatal
	CodeTimeout            Code = "E102" // warning
	CodeVersionMismatch    Code = "E201" // fatal
	CodeSSRCConflict       Code = "E205" // warning
	CodeUnderrun           Code = "E304" // warning
	CodeCRCFailed          Code = "E306" // warning
	CodePLLUnlock          Code = "E402" // warning
	CodeDSPHashMismatch    Code = "E504" // info
)

// defaultSeverity maps a registry code to its documented severity.
func defaultSeverity(c Code) Severity {
	switch c {
	case CodeNetworkUnreachable, CodeVersionMismatch:
		return SeverityFatal
	case CodeDSPHashMismatch:
		return SeverityInfo
	default:
		return SeverityWarning
	}
}

// EnhancedError wraps an error with component/category/code/context metadata.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Code      Code
	Severity  Severity
	Context   map[string]any
	Timestamp time.Time

	mu sync.RWMutex
}

func (ee *EnhancedError) Error() string {
	if ee.Code != "" {
		return fmt.Sprintf("%s: %s", ee.Code, ee.Err.Error())
	}
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error { return ee.Err }

func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category && ee.Code == other.Code
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	ee.mu.RLock()
	defer ee.mu.RUnlock()
	if ee.Context == nil {
		return nil
	}
	cp := make(map[string]any, len(ee.Context))
	maps.Copy(cp, ee.Context)
	return cp
}

// ErrorBuilder is the fluent constructor for EnhancedError.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	code      Code
	severity  Severity
	context   map[string]any
}

// New starts building an enhanced error from an existing error (nil allowed
// for sentinel values constructed purely from Context/Code).
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf is New(fmt.Errorf(format, args...)).
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(c string) *ErrorBuilder      { eb.component = c; return eb }
func (eb *ErrorBuilder) Category(c ErrorCategory) *ErrorBuilder { eb.category = c; return eb }

// ErrCode sets the ANP registry code and defaults the severity from it.
func (eb *ErrorBuilder) ErrCode(c Code) *ErrorBuilder {
	eb.code = c
	if eb.severity == "" {
		eb.severity = defaultSeverity(c)
	}
	return eb
}

func (eb *ErrorBuilder) Severity(s Severity) *ErrorBuilder { eb.severity = s; return eb }

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalizes the error.
func (eb *ErrorBuilder) Build() *EnhancedError {
	if eb.component == "" {
		eb.component = "unknown"
	}
	if eb.category == "" {
		eb.category = CategoryGeneric
	}
	err := eb.err
	if err == nil {
		err = stderrors.New(string(eb.code))
	}
	return &EnhancedError{
		Err:       err,
		Component: eb.component,
		Category:  eb.category,
		Code:      eb.code,
		Severity:  eb.severity,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Standard-library passthroughs; the standard errors.New is NewStd here.
func NewStd(text string) error      { return stderrors.New(text) }
func Is(err, target error) bool     { return stderrors.Is(err, target) }
func As(err error, target any) bool { return stderrors.As(err, target) }
func Unwrap(err error) error        { return stderrors.Unwrap(err) }
func Join(errs ...error) error      { return stderrors.Join(errs...) }

// IsCategory reports whether err is an *EnhancedError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}
