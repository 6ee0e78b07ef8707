package tenancy

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// MaxIdentifierLen is the storage engine's identifier limit.
	MaxIdentifierLen = 64
	// MaxTenantKeyLen bounds the free-form token form of a tenant key.
	MaxTenantKeyLen = 50
	// MaxSubdomainLen is the DNS label limit.
	MaxSubdomainLen = 63
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)
	hexUUIDRe    = regexp.MustCompile(`^[0-9a-fA-F]{32}$`)
	dashedUUIDRe = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
	numericRe    = regexp.MustCompile(`^[0-9]+$`)
	tokenRe      = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
)

// IdentifierKind names what an identifier is used for; it only feeds error
// context.
type IdentifierKind string

const (
	KindTable     IdentifierKind = "table"
	KindColumn    IdentifierKind = "column"
	KindSubdomain IdentifierKind = "subdomain"
)

// Identifier is a value that passed ValidateIdentifier. The zero value is
// not a valid identifier.
type Identifier struct {
	value string
}

func (i Identifier) String() string { return i.value }

// IsZero reports whether i was not produced by the sanitizer.
func (i Identifier) IsZero() bool { return i.value == "" }

// ValidateIdentifier accepts value only if it is a letter followed by
// letters, digits or underscores, at most MaxIdentifierLen long. Nothing is
// ever truncated or escaped.
func ValidateIdentifier(value string, kind IdentifierKind) (Identifier, error) {
	if len(value) == 0 || len(value) > MaxIdentifierLen || !identifierRe.MatchString(value) {
		return Identifier{}, fmt.Errorf("tenancy.ValidateIdentifier(%s): %w", kind, ErrInvalidIdentifier)
	}
	return Identifier{value: value}, nil
}

// ValidateSubdomain applies the DNS label limit before the identifier rules.
func ValidateSubdomain(label string) (Identifier, error) {
	if len(label) > MaxSubdomainLen {
		return Identifier{}, fmt.Errorf("tenancy.ValidateSubdomain: label too long: %w", ErrInvalidIdentifier)
	}
	return ValidateIdentifier(label, KindSubdomain)
}

// ValidateTenantKey accepts a 32-char hex UUID, a hyphenated UUID, a numeric
// string or an [A-Za-z0-9_] token of at most MaxTenantKeyLen characters.
func ValidateTenantKey(raw string) (string, error) {
	switch {
	case raw == "":
		return "", fmt.Errorf("tenancy.ValidateTenantKey: empty: %w", ErrInvalidTenantKey)
	case hexUUIDRe.MatchString(raw), dashedUUIDRe.MatchString(raw):
		return raw, nil
	case len(raw) > MaxTenantKeyLen:
		return "", fmt.Errorf("tenancy.ValidateTenantKey: too long: %w", ErrInvalidTenantKey)
	case numericRe.MatchString(raw), tokenRe.MatchString(raw):
		return raw, nil
	}
	return "", fmt.Errorf("tenancy.ValidateTenantKey: %w", ErrInvalidTenantKey)
}

// SanitizeForTableSuffix turns a tenant key into a table-name suffix. The
// result always matches ^[A-Za-z0-9_]{1,50}$ and the function is idempotent.
func SanitizeForTableSuffix(raw string) (string, error) {
	key, err := ValidateTenantKey(raw)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(key, "-", "_"), nil
}

// TablePrefix is the entity part of a per-tenant table name.
type TablePrefix string

const (
	PrefixStudent    TablePrefix = "student_"
	PrefixTeacher    TablePrefix = "teacher_"
	PrefixCourse     TablePrefix = "course_"
	PrefixAttendance TablePrefix = "attendance_"
	PrefixFeePayment TablePrefix = "fee_payment_"
	PrefixExamResult TablePrefix = "exam_result_"
)

var knownPrefixes = map[TablePrefix]struct{}{
	PrefixStudent:    {},
	PrefixTeacher:    {},
	PrefixCourse:     {},
	PrefixAttendance: {},
	PrefixFeePayment: {},
	PrefixExamResult: {},
}

// TableName is a per-tenant table name built by BuildTableName. Query
// builders accept only this type, so a caller-supplied string can never
// reach the SQL text.
type TableName struct {
	ident Identifier
}

func (t TableName) String() string { return t.ident.value }

// IsZero reports whether t was not produced by BuildTableName.
func (t TableName) IsZero() bool { return t.ident.IsZero() }

// BuildTableName concatenates an allow-listed prefix with the sanitized
// tenant key. It is computed per query and never cached.
func BuildTableName(prefix TablePrefix, tenantKey string) (TableName, error) {
	if _, ok := knownPrefixes[prefix]; !ok {
		return TableName{}, fmt.Errorf("tenancy.BuildTableName: %w", ErrUnknownTablePrefix)
	}

	suffix, err := SanitizeForTableSuffix(tenantKey)
	if err != nil {
		return TableName{}, fmt.Errorf("tenancy.BuildTableName: %w", err)
	}

	ident, err := ValidateIdentifier(string(prefix)+suffix, KindTable)
	if err != nil {
		return TableName{}, fmt.Errorf("tenancy.BuildTableName: %w", err)
	}

	return TableName{ident: ident}, nil
}
