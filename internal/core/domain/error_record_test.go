package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Equal(t, 0, SeverityLow.Rank())
	assert.Equal(t, 3, SeverityCritical.Rank())
	assert.Equal(t, -1, Severity("fatal").Rank())
	assert.False(t, Severity("").Valid())
}

func TestErrorType_Valid(t *testing.T) {
	assert.True(t, ErrorTypeUserInteraction.Valid())
	assert.False(t, ErrorType("ui").Valid())
}

func TestParse(t *testing.T) {
	typ, err := ParseErrorType("cache")
	assert.NoError(t, err)
	assert.Equal(t, ErrorTypeCache, typ)
	_, err = ParseErrorType("disk")
	assert.Error(t, err)

	sev, err := ParseSeverity("high")
	assert.NoError(t, err)
	assert.Equal(t, SeverityHigh, sev)
	_, err = ParseSeverity("")
	assert.Error(t, err)
}

func TestErrorRecord_CloneIsIndependent(t *testing.T) {
	variant := "b"
	rec := &ErrorRecord{
		ID:          "err-1",
		UserContext: UserContext{Variant: &variant},
		RecoveryAttempts: []RecoveryAttempt{
			{Strategy: "cache-fallback", Timestamp: time.Now(), Context: map[string]string{"error": "boom"}},
		},
	}

	clone := rec.Clone()
	*rec.UserContext.Variant = "a"
	rec.RecoveryAttempts[0].Context["error"] = "changed"
	rec.RecoveryAttempts = append(rec.RecoveryAttempts, RecoveryAttempt{Strategy: "cache-fallback"})

	assert.Equal(t, "b", clone.UserContext.VariantName())
	assert.Equal(t, "boom", clone.RecoveryAttempts[0].Context["error"])
	assert.Len(t, clone.RecoveryAttempts, 1)
}

func TestErrorRecord_AttemptsFor(t *testing.T) {
	rec := &ErrorRecord{RecoveryAttempts: []RecoveryAttempt{
		{Strategy: "a"}, {Strategy: "b"}, {Strategy: "a"},
	}}
	assert.Equal(t, 2, rec.AttemptsFor("a"))
	assert.Equal(t, 1, rec.AttemptsFor("b"))
	assert.Equal(t, 0, rec.AttemptsFor("c"))
}
