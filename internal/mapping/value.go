package mapping

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/correlator-io/xmlextract/internal/contract"
	"github.com/correlator-io/xmlextract/internal/expr"
)

var truthyValues = map[string]bool{"Y": true, "YES": true, "TRUE": true, "T": true, "1": true}

// isTruthy reports whether a raw source value counts as "true" for
// add_indicator per spec.md §4.5 (case-insensitive Y/YES/TRUE/T/1).
func isTruthy(raw string) bool {
	return truthyValues[strings.ToUpper(strings.TrimSpace(raw))]
}

// isMeaningful reports whether a raw value is non-empty and not one of the
// textual "no value" placeholders (null/none, case-insensitive).
func isMeaningful(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return false
	}

	switch strings.ToUpper(trimmed) {
	case "NULL", "NONE":
		return false
	default:
		return true
	}
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// extractDigits strips every non-digit character, used both for numbers_only
// and for the automatic integer-column coercion in step 3.b.
func extractDigits(raw string) string {
	return nonDigit.ReplaceAllString(raw, "")
}

// extractSource reads the raw source value for a field mapping: from an
// expression evaluated against the app-level context, or from the XML node
// itself via xml_path/xml_attribute.
func extractSource(node *xmlquery.Node, fm contract.FieldMapping, appCtx expr.Context) (string, bool) {
	if fm.Expression != "" {
		parsed, err := expr.Parse(fm.Expression)
		if err != nil {
			return "", false
		}

		v := expr.Eval(parsed, appCtx)
		if v.IsNull() {
			return "", false
		}

		return v.AsString(), true
	}

	target := node

	if fm.XMLPath != "" {
		target = xmlquery.FindOne(node, fm.XMLPath)
		if target == nil {
			return "", false
		}
	}

	if fm.XMLAttribute == "" {
		return strings.TrimSpace(target.InnerText()), true
	}

	raw := target.SelectAttr(fm.XMLAttribute)
	if raw == "" {
		return "", false
	}

	return raw, true
}

// rightmostSegment returns the final "/"-separated segment of an xml_path,
// used by add_history to name the source of a history entry.
func rightmostSegment(xmlPath string) string {
	parts := strings.Split(strings.TrimRight(xmlPath, "/"), "/")

	return parts[len(parts)-1]
}

// coerceDataType applies §4.5 step 3.b's data_type conversion: integer
// columns auto-extract digits from non-digit input; everything else passes
// through as a string for the caller to box.
func coerceDataType(raw, dataType string) interface{} {
	switch strings.ToLower(dataType) {
	case "int", "integer", "bigint", "smallint":
		digits := raw
		if !isAllDigits(raw) {
			digits = extractDigits(raw)
		}

		if digits == "" {
			return nil
		}

		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil {
			return nil
		}

		return n
	default:
		return raw
	}
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}

	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}

// truncate enforces data_length, trimming a string to its maximum length.
// Returns the (possibly truncated) value and whether truncation occurred.
func truncate(raw string, maxLen int) (string, bool) {
	if maxLen <= 0 || len(raw) <= maxLen {
		return raw, false
	}

	return raw[:maxLen], true
}
