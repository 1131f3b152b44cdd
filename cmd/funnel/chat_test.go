package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/servicefunnel/plugin/ai/funnel"
)

func TestRunChat_DemoCatalog(t *testing.T) {
	viper.Set("mode", "demo")
	viper.Set("driver", "sqlite")
	viper.Set("data", t.TempDir())
	t.Cleanup(viper.Reset)

	in := strings.NewReader("лифт застрял\n\n/quit\n")
	var out bytes.Buffer
	require.NoError(t, runChat(context.Background(), in, &out))

	text := out.String()
	assert.Contains(t, text, "new dialog")
	assert.Equal(t, 3, strings.Count(text, "> "))
}

func TestPrintResult(t *testing.T) {
	res := &funnel.DetectResult{
		Status:      funnel.StatusSuccess,
		ServiceID:   7,
		ServiceName: "Лифт не работает",
		Confidence:  0.97,
		Message:     "Правильно?",
		State:       funnel.StateSingleHighConfidence,
		Candidates: []funnel.AggregatedCandidate{
			{ServiceID: 7, ServiceName: "Лифт не работает", Priority: 0.97},
		},
	}

	var out bytes.Buffer
	printResult(&out, res, false)
	assert.Equal(t, "Правильно?\n  → 7 Лифт не работает (0.97)\n", out.String())

	out.Reset()
	printResult(&out, res, true)
	assert.Contains(t, out.String(), "state=SINGLE_HIGH_CONFIDENCE")
	assert.Contains(t, out.String(), "0.970  7 Лифт не работает")
}
