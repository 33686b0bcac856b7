package consolidation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronRejectsMalformedExpression(t *testing.T) {
	_, err := parseCron("not a cron")
	assert.Error(t, err)
}

func TestCronSpecMatchesDailyAtConfiguredTime(t *testing.T) {
	spec, err := parseCron("0 2 * * *")
	require.NoError(t, err)

	match := time.Date(2026, 7, 31, 2, 0, 0, 0, time.UTC)
	noMatch := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	assert.True(t, spec.matches(match))
	assert.False(t, spec.matches(noMatch))
}

func TestCronSpecMatchesWeeklyOnConfiguredWeekday(t *testing.T) {
	spec, err := parseCron("0 3 * * 0") // Sunday
	require.NoError(t, err)

	sunday := time.Date(2026, 8, 2, 3, 0, 0, 0, time.UTC)
	monday := time.Date(2026, 8, 3, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Sunday, sunday.Weekday())
	assert.True(t, spec.matches(sunday))
	assert.False(t, spec.matches(monday))
}

func TestCronSpecMatchesMonthlyOnConfiguredDay(t *testing.T) {
	spec, err := parseCron("0 4 1 * *")
	require.NoError(t, err)

	firstOfMonth := time.Date(2026, 8, 1, 4, 0, 0, 0, time.UTC)
	fifteenth := time.Date(2026, 8, 15, 4, 0, 0, 0, time.UTC)
	assert.True(t, spec.matches(firstOfMonth))
	assert.False(t, spec.matches(fifteenth))
}
