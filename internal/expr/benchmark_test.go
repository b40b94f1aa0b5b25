package expr

import (
	"testing"

	"github.com/shopspring/decimal"
)

// ==============================================================================
// Benchmarks: Expression Evaluation Performance
// ==============================================================================

func Benchmark_ParseAndEval(b *testing.B) {
	if !testing.Short() {
		b.Skip("skipping benchmark in non-short mode")
	}

	src := "CASE WHEN status = 'ACTIVE' AND score >= 650 THEN score * 1.1 ELSE 0 END"
	ctx := Context{
		"status": String("ACTIVE"),
		"score":  Decimal(decimal.RequireFromString("700")),
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		node, err := Parse(src)
		if err != nil {
			b.Fatalf("parse failed: %v", err)
		}

		_ = Eval(node, ctx)
	}
}

func Benchmark_EvalPreParsed(b *testing.B) {
	if !testing.Short() {
		b.Skip("skipping benchmark in non-short mode")
	}

	src := "check_requested_by_user LIKE '%@bank.com'"
	ctx := Context{"check_requested_by_user": String("officer@bank.com")}

	node, err := Parse(src)
	if err != nil {
		b.Fatalf("parse failed: %v", err)
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = Eval(node, ctx)
	}
}
