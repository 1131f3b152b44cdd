package problem

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	funnelerrors "github.com/hrygo/servicefunnel/internal/errors"
	"github.com/hrygo/servicefunnel/plugin/ai"
	"github.com/hrygo/servicefunnel/plugin/ai/catalog"
	"github.com/hrygo/servicefunnel/plugin/ai/extract"
	"github.com/hrygo/servicefunnel/plugin/ai/lexicon"
	"github.com/hrygo/servicefunnel/plugin/ai/memory"
)

func TestAccumulate_TrivialTurnIsNoop(t *testing.T) {
	client := ai.NewMockLLMClient()
	acc := NewAccumulator(client, lexicon.Default())

	for _, utterance := range []string{"hello", "Привет!", "да, спасибо", "  "} {
		res := acc.Accumulate(context.Background(), Input{Utterance: utterance, Current: "user has a leak"})
		assert.Equal(t, "user has a leak", res.UpdatedDescription, utterance)
		assert.False(t, res.IsMeaningful, utterance)
		assert.True(t, res.Filters.IsEmpty(), utterance)
	}
	assert.Zero(t, client.Calls())
}

func TestAccumulate_Meaningful(t *testing.T) {
	client := ai.NewMockLLMClient()
	client.Default = `{"is_meaningful": true, "new_info": "место: ванная", "updated_problem": "у жителя течет в ванной",
		"fields": {"problem": "течет", "location": "ванная", "source": null, "category": null, "severity": null, "intensity": null, "object": null}}`
	acc := NewAccumulator(client, lexicon.Default())

	history := memory.History{
		{Role: memory.RoleUser, Text: "у меня течет"},
		{Role: memory.RoleBot, Text: "Где именно это произошло?"},
	}
	res := acc.Accumulate(context.Background(), Input{
		Utterance:       "в ванной",
		Current:         "у жителя течет",
		LastBotQuestion: "Где именно это произошло?",
		History:         history,
	})

	assert.True(t, res.IsMeaningful)
	assert.Equal(t, "у жителя течет в ванной", res.UpdatedDescription)
	assert.Equal(t, "ванная", res.Fields.Location)
	assert.Equal(t, extract.Value{Value: catalog.IncidentTypeIncident, Confidence: 0.9}, res.Filters.Incident)
	assert.Equal(t, extract.Value{Value: catalog.LocationInUnit, Confidence: 0.95}, res.Filters.Location)

	prompt := client.Prompts[0]
	assert.Contains(t, prompt, "у жителя течет")
	assert.Contains(t, prompt, "Где именно это произошло?")
	assert.Contains(t, prompt, "user: у меня течет")
}

func TestAccumulate_RewriteDroppingPreviousIsRejected(t *testing.T) {
	client := ai.NewMockLLMClient()
	client.Default = `{"is_meaningful": true, "new_info": "батарея холодная", "updated_problem": "батарея холодная", "fields": {}}`
	acc := NewAccumulator(client, lexicon.Default())

	res := acc.Accumulate(context.Background(), Input{Utterance: "и батарея холодная", Current: "у жителя течет в зале"})
	assert.Equal(t, "у жителя течет в зале, батарея холодная", res.UpdatedDescription)
	assert.True(t, res.IsMeaningful)
}

func TestAccumulate_ModelSaysNotMeaningful(t *testing.T) {
	client := ai.NewMockLLMClient()
	client.Default = `{"is_meaningful": false, "new_info": "", "updated_problem": "что-то другое", "fields": {}}`
	acc := NewAccumulator(client, lexicon.Default())

	res := acc.Accumulate(context.Background(), Input{Utterance: "ну вот как-то так вообще", Current: "у жителя течет"})
	assert.False(t, res.IsMeaningful)
	assert.Equal(t, "у жителя течет", res.UpdatedDescription)
}

func TestAccumulate_LLMFailureAppends(t *testing.T) {
	tests := map[string]*ai.MockLLMClient{
		"Timeout":   {Replies: map[string]string{}, Err: funnelerrors.LLMTimeout(errors.New("slow"))},
		"Malformed": {Replies: map[string]string{}, Default: "не знаю"},
	}
	for name, client := range tests {
		t.Run(name, func(t *testing.T) {
			acc := NewAccumulator(client, lexicon.Default())
			res := acc.Accumulate(context.Background(), Input{Utterance: "на кухне", Current: "у жителя течет"})
			assert.True(t, res.IsMeaningful)
			assert.Equal(t, "у жителя течет, на кухне", res.UpdatedDescription)
			assert.Equal(t, Fields{}, res.Fields)
		})
	}
}

func TestAccumulate_WithoutClient(t *testing.T) {
	acc := NewAccumulator(nil, lexicon.Default())

	res := acc.Accumulate(context.Background(), Input{Utterance: "течет кран"})
	assert.True(t, res.IsMeaningful)
	assert.Equal(t, "течет кран", res.UpdatedDescription)
	assert.True(t, res.Filters.Incident.Established())
}

func TestFilters(t *testing.T) {
	acc := NewAccumulator(nil, lexicon.Default())

	t.Run("TextualValuesAreEstablished", func(t *testing.T) {
		f := acc.Filters("у жителя течет батарея в подъезде, отопление", Fields{
			Location: "подъезд",
			Category: "отопление",
			Source:   "батарея",
		})
		assert.Equal(t, extract.Value{Value: catalog.LocationShared, Confidence: 0.95}, f.Location)
		assert.Equal(t, extract.Value{Value: "heating", Confidence: 0.95}, f.Category)
		assert.Equal(t, extract.Value{Value: "батарея", Confidence: 0.95}, f.Object)
	})

	t.Run("FieldsOutsideDescriptionAreTentative", func(t *testing.T) {
		f := acc.Filters("хочу узнать про счетчики", Fields{Location: "зал", Category: "водоснабжение", Object: "смеситель"})
		assert.Equal(t, extract.Value{Value: catalog.IncidentTypeRequest, Confidence: 0.7}, f.Incident)
		assert.Equal(t, extract.Value{Value: catalog.LocationInUnit, Confidence: 0.7}, f.Location)
		assert.Equal(t, extract.Value{Value: "water", Confidence: 0.7}, f.Category)
		assert.Equal(t, extract.Value{Value: "смеситель", Confidence: 0.7}, f.Object)
	})

	t.Run("UnknownCategoryDropped", func(t *testing.T) {
		f := acc.Filters("течет", Fields{Category: "космос"})
		assert.False(t, f.Category.IsSet())
	})

	t.Run("EmptyDescription", func(t *testing.T) {
		assert.True(t, acc.Filters("", Fields{Location: "кухня"}).IsEmpty())
	})
}

func TestFields_Merge(t *testing.T) {
	prev := Fields{Problem: "течет", Location: "ванная"}
	got := prev.Merge(Fields{Object: "смеситель", Location: " "})
	require.Equal(t, "ванная", got.Location)
	assert.Equal(t, "смеситель", got.Object)
	assert.Equal(t, "течет", got.Problem)
}

func TestMentions(t *testing.T) {
	assert.True(t, mentions("у жителя течет в ванной", "ванная"))
	assert.True(t, mentions("течет в подъезде", "подъезд"))
	assert.False(t, mentions("течет в подъезде", "кухня"))
	assert.False(t, mentions("течет", ""))
}
