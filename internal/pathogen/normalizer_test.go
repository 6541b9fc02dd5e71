package pathogen

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
	"github.com/joseph-ayodele/surveillance-tracker/internal/common"
)

func newNormalizer(t *testing.T, opts ...Option) *Normalizer {
	t.Helper()
	n, err := NewNormalizer(nil, opts...)
	require.NoError(t, err)
	return n
}

func TestNormalize_AliasMatchesCanonical(t *testing.T) {
	n := newNormalizer(t)

	canonical := n.Normalize("新型冠状病毒")
	alias := n.Normalize("新冠病毒")

	assert.Equal(t, constants.SARSCoV2, canonical.Pathogen)
	assert.Equal(t, MethodExact, canonical.Method)
	assert.Equal(t, canonical.Pathogen, alias.Pathogen)
	assert.Equal(t, MethodAlias, alias.Method)
}

func TestNormalize_CaseDefinitionIsNotAPathogen(t *testing.T) {
	n := newNormalizer(t)

	for _, raw := range []string{"流感样病例", "流感样病例(ILI)", "门急诊流感样病例", "严重急性呼吸道感染病例", "急性呼吸道感染"} {
		m := n.Normalize(raw)
		assert.False(t, m.Recognized(), raw)
		assert.Equal(t, MethodNone, m.Method, raw)
	}

	assert.Equal(t, constants.Influenza, n.Normalize("流感病毒").Pathogen)
	assert.Equal(t, constants.Influenza, n.Normalize("甲型流感").Pathogen)
	assert.Equal(t, constants.Influenza, n.Normalize("流感").Pathogen)
}

func TestNormalize_Stages(t *testing.T) {
	tests := []struct {
		raw    string
		want   constants.Pathogen
		method Method
	}{
		{"流感病毒", constants.Influenza, MethodExact},
		{" 呼吸道 合胞病毒 ", constants.RSV, MethodExact},
		{"RSV", constants.RSV, MethodAlias},
		{"SARS-CoV-2", constants.SARSCoV2, MethodAlias},
		{"ＨＭＰＶ", constants.Metapneumovirus, MethodAlias},
		{"流感病毒①", constants.Influenza, MethodCleaned},
		{"腺病毒(ADV)", constants.Adenovirus, MethodCleaned},
		{"鼻病毒阳性率(%)", constants.Rhinovirus, MethodCleaned},
		{"SARS-CoV-2*", constants.SARSCoV2, MethodCleaned},
		{"甲型流感病毒", constants.Influenza, MethodContainment},
		{"副流感病毒1-4型", constants.Parainfluenza, MethodContainment},
		{"人偏肺病毒(hMPV)核酸", constants.Metapneumovirus, MethodCleaned},
		{"合胞", constants.RSV, MethodContainment},
		{"肠道病母", constants.Enterovirus, MethodFuzzy},
		{"新型冠伏病毒", constants.SARSCoV2, MethodAlias},
		{"新型冠状病母", constants.SARSCoV2, MethodFuzzy},
	}

	n := newNormalizer(t)
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			m := n.Normalize(tt.raw)
			assert.Equal(t, tt.want, m.Pathogen)
			assert.Equal(t, tt.method, m.Method)
			assert.NoError(t, m.Err())
		})
	}
}

func TestNormalize_Unrecognized(t *testing.T) {
	n := newNormalizer(t)

	for _, raw := range []string{"", "病毒", "冠状病毒", "结核分枝杆菌", "EV71抗体", "其他"} {
		t.Run(raw, func(t *testing.T) {
			m := n.Normalize(raw)
			assert.Equal(t, constants.Unrecognized, m.Pathogen)
			assert.Equal(t, MethodNone, m.Method)
			assert.False(t, m.Recognized())
			assert.True(t, errors.Is(m.Err(), common.ErrUnrecognizedPathogen))
		})
	}
}

func TestNormalize_DeterministicAndIdempotent(t *testing.T) {
	labels := []string{"新冠", "流感病毒①", "甲型流感病毒", "肠道病母", "乱码标签", "HRV", "冠状病毒"}

	first := newNormalizer(t, WithCacheSize(2))
	second := newNormalizer(t)
	for _, raw := range labels {
		a := first.Normalize(raw)
		b := first.Normalize(raw)
		c := second.Normalize(raw)
		assert.Equal(t, a, b, raw)
		assert.Equal(t, a, c, raw)

		if a.Recognized() {
			again := second.Normalize(string(a.Pathogen))
			assert.Equal(t, a.Pathogen, again.Pathogen, raw)
			assert.Equal(t, MethodExact, again.Method, raw)
		}
	}
}

func TestNormalize_EveryCanonicalAndSynonymRoundTrips(t *testing.T) {
	n := newNormalizer(t)
	for _, p := range constants.AllPathogens() {
		assert.Equal(t, p, n.Normalize(string(p)).Pathogen)
	}
	for alias, p := range constants.Synonyms {
		got := n.Normalize(alias)
		assert.Equal(t, p, got.Pathogen, alias)
		assert.Equal(t, p, n.Normalize(string(got.Pathogen)).Pathogen, alias)
	}
}

func TestNormalize_Threshold(t *testing.T) {
	strict := newNormalizer(t, WithThreshold(0.9))
	assert.False(t, strict.Normalize("肠道病母").Recognized())

	loose := newNormalizer(t, WithThreshold(0.7))
	assert.Equal(t, constants.Enterovirus, loose.Normalize("肠道病母").Pathogen)
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 1.0, Similarity("腺病毒", "腺病毒"))
	assert.InDelta(t, 0.75, Similarity("流感病母", "流感病毒"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
}

func TestAliasesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aliases.yaml")
	require.NoError(t, os.WriteFile(path, []byte("aliases:\n  肺炎支原体: [支原体肺炎, M.pneumoniae]\n  腺病毒: [ 腺病 ]\n"), 0o644))

	n, err := FromConfig(common.NormalizerConfig{AliasesFile: path, FuzzyThreshold: 0.75, CacheSize: 16}, nil)
	require.NoError(t, err)

	m := n.Normalize("M.pneumoniae")
	assert.Equal(t, constants.Mycoplasma, m.Pathogen)
	assert.Equal(t, MethodAlias, m.Method)
	assert.Equal(t, constants.Adenovirus, n.Normalize("腺病").Pathogen)
}

func TestParseAliases_Errors(t *testing.T) {
	_, err := ParseAliases([]byte("aliases:\n  结核杆菌: [TB]\n"))
	assert.ErrorContains(t, err, "not a canonical pathogen")

	_, err = ParseAliases([]byte("aliases:\n  腺病毒: [X1]\n  鼻病毒: [x1]\n"))
	assert.ErrorContains(t, err, "maps to both")

	_, err = ParseAliases([]byte("aliases: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse aliases")
}
