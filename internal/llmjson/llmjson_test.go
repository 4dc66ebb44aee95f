package llmjson

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{
			name: "bare json",
			raw:  `{"key_event": "flood losses rise"}`,
			want: `{"key_event": "flood losses rise"}`,
		},
		{
			name: "json fenced block",
			raw:  "Here is the result:\n```json\n{\"confidence\": \"High\"}\n```\nLet me know if you need more.",
			want: `{"confidence": "High"}`,
		},
		{
			name: "plain fenced block",
			raw:  "```\n{\"a\": 1}\n```",
			want: `{"a": 1}`,
		},
		{
			name: "unterminated fence",
			raw:  "```json\n{\"a\": 1}",
			want: `{"a": 1}`,
		},
		{
			name: "object buried in prose",
			raw:  `Sure! The summary is {"risk_factors": ["wildfire"]} as requested.`,
			want: `{"risk_factors": ["wildfire"]}`,
		},
		{
			name: "nested braces in prose",
			raw:  `Result: {"outer": {"inner": 2}} done`,
			want: `{"outer": {"inner": 2}}`,
		},
		{
			name:    "no json at all",
			raw:     "I cannot produce a summary for this article.",
			wantErr: true,
		},
		{
			name:    "empty input",
			raw:     "",
			wantErr: true,
		},
		{
			name:    "broken json everywhere",
			raw:     "```json\n{\"a\": \n``` {\"b\":",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Extract(tt.raw)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrNoJSON)
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractPrefersFencedBlockOverSpan(t *testing.T) {
	// When the direct parse fails, the fenced block must win over the
	// greedy outermost-object span.
	raw := "ignore {\"wrong\": true} ```json\n{\"right\": true}\n``` trailing"
	got, err := Extract(raw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"right": true}`, string(got))
}

func TestUnmarshal(t *testing.T) {
	var out struct {
		KeyEvent   string   `json:"key_event"`
		Domains    []string `json:"insurance_domains"`
		Confidence string   `json:"confidence"`
	}
	raw := "```json\n{\"key_event\": \"EU adopts climate disclosure rules\", \"insurance_domains\": [\"property\"], \"confidence\": \"Medium\"}\n```"
	require.NoError(t, Unmarshal(raw, &out))
	assert.Equal(t, "EU adopts climate disclosure rules", out.KeyEvent)
	assert.Equal(t, []string{"property"}, out.Domains)
	assert.Equal(t, "Medium", out.Confidence)
}

func TestUnmarshalTypeMismatch(t *testing.T) {
	var out struct {
		Count int `json:"count"`
	}
	err := Unmarshal(`{"count": "many"}`, &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoJSON)
}
