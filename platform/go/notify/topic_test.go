package notify

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTopicCanonicalForm(t *testing.T) {
	t.Parallel()

	require.Equal(t, "SOC_AJMER_01_A_101", Topic("soc_ajmer_01", "A-101"))
	require.Equal(t, "S1_A_101", Topic("S1", " a 101 "))
	require.Equal(t, "S1_B202", Topic("s1", "b202"))
}

func TestTopicCollapsesSeparatorRuns(t *testing.T) {
	t.Parallel()

	require.Equal(t, "S1_A_101", Topic("S1", "--A__101--"))
	require.Equal(t, "S1", Topic("  s1  ", ""))
}

func TestLegacyTopicDiffersByIdentifier(t *testing.T) {
	t.Parallel()

	require.Equal(t, "S1_F_1", LegacyTopic("S1", "f-1"))
	require.NotEqual(t, Topic("S1", "A-101"), LegacyTopic("S1", "f-1"))
}
