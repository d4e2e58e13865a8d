package knowledge

import (
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-assistant/pkg/models"
)

func testCorpus() []models.KnowledgeRecord {
	return []models.KnowledgeRecord{
		{ID: "faq_1", Question: "How do I reset my password", Answer: "Go to Settings > Reset Password"},
		{ID: "faq_2", Question: "How do I update my billing address", Answer: "Open Billing and edit the address."},
		{ID: "faq_3", Question: "Where can I download my invoice", Answer: "Invoices are under Billing > History."},
		{ID: "faq_4", Question: "How do I delete my account", Answer: "Contact support to delete your account."},
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"How do I reset my password?":  "how do i reset my password",
		"  Hello,\tWORLD!!  ":          "hello world",
		"Don't   panic -- it's OK":     "dont panic its ok",
		"":                             "",
		"???":                          "",
		"Order #1234\nwas late":        "order 1234 was late",
		"already normalized text here": "already normalized text here",
	}

	for input, expected := range cases {
		assert.Equal(t, expected, Normalize(input), "input %q", input)
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"How do I reset my password?",
		"  MiXeD  case\t\twith\n\nnewlines ",
		"Ünïcode çharacters & symbols!",
		"a",
		"",
	}

	for _, input := range inputs {
		once := Normalize(input)
		assert.Equal(t, once, Normalize(once), "input %q", input)
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("reset my password", "reset my password"))
	assert.Equal(t, 0.0, Similarity("reset password", "billing invoice"))
	assert.Equal(t, 0.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("preset", "reset"), "no shared token")

	score := Similarity("how to reset my password", "how do i reset my password")
	assert.Greater(t, score, 0.6)
	assert.Less(t, score, 1.0)

	assert.Equal(t, Similarity("a b c", "c d e"), Similarity("c d e", "a b c"))
}

func TestMatcher_Search(t *testing.T) {
	m := NewMatcher(testCorpus())

	results := m.Search("how to reset my password", 3)
	require.Len(t, results, 3)
	assert.Equal(t, "faq_1", results[0].Record.ID)
	assert.GreaterOrEqual(t, results[0].Score, 0.6)

	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestMatcher_SearchBoundsAndOrder(t *testing.T) {
	m := NewMatcher(testCorpus())

	queries := []string{"password", "billing", "my", "invoice download", "unrelated words", "HOW DO I"}
	for _, q := range queries {
		for limit := 0; limit <= 6; limit++ {
			results := m.Search(q, limit)
			assert.LessOrEqual(t, len(results), limit)
			for i, r := range results {
				assert.GreaterOrEqual(t, r.Score, 0.0)
				assert.LessOrEqual(t, r.Score, 1.0)
				if i > 0 {
					assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
				}
			}
		}
	}
}

func TestMatcher_TiesKeepCorpusOrder(t *testing.T) {
	m := NewMatcher([]models.KnowledgeRecord{
		{ID: "a", Question: "alpha"},
		{ID: "b", Question: "beta"},
		{ID: "c", Question: "gamma"},
	})

	results := m.Search("nothing shared", 3)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{results[0].Record.ID, results[1].Record.ID, results[2].Record.ID})
}

func TestMatcher_EmptyQuery(t *testing.T) {
	m := NewMatcher(testCorpus())

	assert.Empty(t, m.Search("", 3))
	assert.Empty(t, m.Search("?!", 3))
	assert.Empty(t, NewMatcher(nil).Search("reset password", 3))
}

func TestMatcher_PunctuationAndCaseIgnored(t *testing.T) {
	m := NewMatcher(testCorpus())

	plain := m.Search("how do i reset my password", 1)
	noisy := m.Search("HOW do I reset... my PASSWORD???", 1)
	require.Len(t, plain, 1)
	require.Len(t, noisy, 1)
	assert.Equal(t, plain[0], noisy[0])
	assert.Equal(t, 1.0, noisy[0].Score)
}

func TestLoad(t *testing.T) {
	corpus := strings.Join([]string{
		"id,question,answer",
		"faq_1,How do I reset my password,Go to Settings > Reset Password",
		"",
		"faq_2,How do I pay,Use a card, PayPal, or a bank transfer",
		`faq_3,"Can I change my plan, mid-cycle?","Yes, changes are prorated."`,
		"broken line without delimiters",
		"only,two",
		",missing id,answer",
	}, "\n")

	records, stats, err := Load(strings.NewReader(corpus))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 3, stats.Dropped)

	assert.Equal(t, "faq_1", records[0].ID)
	assert.Equal(t, "how do i reset my password", records[0].NormalizedQuestion)
	assert.Equal(t, "Use a card, PayPal, or a bank transfer", records[1].Answer)
	assert.Equal(t, "Can I change my plan, mid-cycle?", records[2].Question)
	assert.Equal(t, "Yes, changes are prorated.", records[2].Answer)
}

func TestLoad_OversizedLineIsSkipped(t *testing.T) {
	corpus := strings.Join([]string{
		"faq_1,How do I reset my password,Go to Settings > Reset Password",
		"faq_big,Huge answer," + strings.Repeat("x", 2*maxLineBytes),
		"faq_2,How do I pay,Use a card\r",
		"faq_3,Where is my invoice,Billing > History",
	}, "\n")

	records, stats, err := Load(strings.NewReader(corpus))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1, stats.Dropped)
	assert.Equal(t, []string{"faq_1", "faq_2", "faq_3"}, []string{records[0].ID, records[1].ID, records[2].ID})
	assert.Equal(t, "Use a card", records[1].Answer)
}

func TestLoad_LineAtLimitIsKept(t *testing.T) {
	prefix := "faq_1,Long answer,"
	line := prefix + strings.Repeat("y", maxLineBytes-len(prefix))

	records, stats, err := Load(strings.NewReader(line + "\n"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0, stats.Dropped)
	assert.Len(t, records[0].Answer, maxLineBytes-len(prefix))
}

func TestLoadFile_MissingDegradesToEmpty(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	records := LoadFile(t.TempDir()+"/does-not-exist.csv", logger)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}
