package bt

import "github.com/venlark/ticktree/pkg/formula"

// ErrorCategory spans the formula categories plus the tree-specific
// ones, so a single reporter can carry both.
type ErrorCategory int

const (
	CategoryInternal ErrorCategory = iota
	CategorySyntax
	CategoryTypeCheck
	CategoryIdentifier
	CategoryMath
	CategoryConst

	CategoryExpressionType
)

// ErrorCode spans the formula codes plus the tree-specific ones.
type ErrorCode int

const (
	CodeInternalError ErrorCode = iota
	CodeSyntaxError
	CodeIdentifierNotFound
	CodeArithmeticTypeError
	CodeComparisonTypeError
	CodeLogicTypeError
	CodeDivideByZero
	CodeConstNameExpression

	CodeConditionTypeNotBool
)

var categoryFromFormula = map[formula.ErrorCategory]ErrorCategory{
	formula.CategoryInternal:   CategoryInternal,
	formula.CategorySyntax:     CategorySyntax,
	formula.CategoryTypeCheck:  CategoryTypeCheck,
	formula.CategoryIdentifier: CategoryIdentifier,
	formula.CategoryMath:       CategoryMath,
	formula.CategoryConst:      CategoryConst,
}

var codeFromFormula = map[formula.ErrorCode]ErrorCode{
	formula.CodeInternalError:       CodeInternalError,
	formula.CodeSyntaxError:         CodeSyntaxError,
	formula.CodeIdentifierNotFound:  CodeIdentifierNotFound,
	formula.CodeArithmeticTypeError: CodeArithmeticTypeError,
	formula.CodeComparisonTypeError: CodeComparisonTypeError,
	formula.CodeLogicTypeError:      CodeLogicTypeError,
	formula.CodeDivideByZero:        CodeDivideByZero,
	formula.CodeConstNameExpression: CodeConstNameExpression,
}

// ErrorInfo is a single reported failure.
type ErrorInfo struct {
	Category ErrorCategory
	Code     ErrorCode
	Message  string
}

// ErrorReporter accumulates failures. Unlike formula compilation, tree
// compilation keeps going after a condition fails, so one build can
// surface several problems.
type ErrorReporter struct {
	errors []ErrorInfo
}

// AddError appends a failure.
func (r *ErrorReporter) AddError(category ErrorCategory, code ErrorCode, message string) {
	r.errors = append(r.errors, ErrorInfo{Category: category, Code: code, Message: message})
}

// CombineFormula absorbs every error from a formula reporter.
func (r *ErrorReporter) CombineFormula(src *formula.ErrorReporter) {
	for _, info := range src.All() {
		r.errors = append(r.errors, ErrorInfo{
			Category: categoryFromFormula[info.Category],
			Code:     codeFromFormula[info.Code],
			Message:  info.Message,
		})
	}
}

// Reset discards all recorded failures.
func (r *ErrorReporter) Reset() {
	r.errors = r.errors[:0]
}

// Count returns the number of recorded failures.
func (r *ErrorReporter) Count() int {
	return len(r.errors)
}

// Error returns the i-th recorded failure.
func (r *ErrorReporter) Error(i int) ErrorInfo {
	return r.errors[i]
}

// All returns the recorded failures in order.
func (r *ErrorReporter) All() []ErrorInfo {
	return r.errors
}
