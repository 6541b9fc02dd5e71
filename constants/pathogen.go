package constants

import (
	"strings"
)

// Pathogen is a canonical name from the controlled vocabulary of table 1.
type Pathogen string

const (
	SARSCoV2            Pathogen = "新型冠状病毒"
	Influenza           Pathogen = "流感病毒"
	RSV                 Pathogen = "呼吸道合胞病毒"
	Adenovirus          Pathogen = "腺病毒"
	Metapneumovirus     Pathogen = "人偏肺病毒"
	Parainfluenza       Pathogen = "副流感病毒"
	SeasonalCoronavirus Pathogen = "普通冠状病毒"
	Bocavirus           Pathogen = "博卡病毒"
	Rhinovirus          Pathogen = "鼻病毒"
	Enterovirus         Pathogen = "肠道病毒"
	Mycoplasma          Pathogen = "肺炎支原体"

	// Unrecognized marks a label that maps to nothing in the vocabulary.
	Unrecognized Pathogen = "unrecognized"
)

var allPathogens = []Pathogen{
	SARSCoV2,
	Influenza,
	RSV,
	Adenovirus,
	Metapneumovirus,
	Parainfluenza,
	SeasonalCoronavirus,
	Bocavirus,
	Rhinovirus,
	Enterovirus,
	Mycoplasma,
}

// AllPathogens returns the vocabulary in table order.
func AllPathogens() []Pathogen {
	out := make([]Pathogen, len(allPathogens))
	copy(out, allPathogens)
	return out
}

func AsStringSlice() []string {
	result := make([]string, len(allPathogens))
	for i, p := range allPathogens {
		result[i] = string(p)
	}
	return result
}

// IsCanonical reports whether p is a member of the vocabulary.
func IsCanonical(p Pathogen) bool {
	for _, c := range allPathogens {
		if c == p {
			return true
		}
	}
	return false
}

// Synonyms holds the built-in alias table. Keys are lower-cased and stripped of whitespace.
var Synonyms = map[string]Pathogen{
	"新冠病毒":        SARSCoV2,
	"新冠":          SARSCoV2,
	"新型冠状病毒感染":    SARSCoV2,
	"新型冠状病毒(sars-cov-2)": SARSCoV2,
	"sars-cov-2":  SARSCoV2,
	"sarscov2":    SARSCoV2,
	"covid-19":    SARSCoV2,
	"covid19":     SARSCoV2,
	"2019-ncov":   SARSCoV2,
	"新型冠伏病毒":      SARSCoV2,

	"流感":          Influenza,
	"流行性感冒病毒":     Influenza,
	"流感病毒(甲型+乙型)": Influenza,
	"influenza":   Influenza,
	"flu":         Influenza,
	"iv":          Influenza,

	"合胞病毒":     RSV,
	"呼吸道合孢病毒":  RSV,
	"rsv":      RSV,

	"adv":  Adenovirus,
	"hadv": Adenovirus,

	"偏肺病毒":   Metapneumovirus,
	"人类偏肺病毒": Metapneumovirus,
	"hmpv":   Metapneumovirus,
	"mpv":    Metapneumovirus,

	"副流感":  Parainfluenza,
	"piv":  Parainfluenza,
	"hpiv": Parainfluenza,

	"季节性冠状病毒": SeasonalCoronavirus,
	"hcov":    SeasonalCoronavirus,

	"人博卡病毒": Bocavirus,
	"博卡":    Bocavirus,
	"hbov":  Bocavirus,
	"bov":   Bocavirus,

	"人鼻病毒": Rhinovirus,
	"hrv":  Rhinovirus,
	"rv":   Rhinovirus,

	"ev": Enterovirus,

	"支原体":  Mycoplasma,
	"肺炎支原菌": Mycoplasma,
	"mp":   Mycoplasma,
}

// Canonicalize resolves exact names and built-in synonyms only.
func Canonicalize(input string) (Pathogen, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(input), ""))
	if normalized == "" {
		return Unrecognized, false
	}
	for _, p := range allPathogens {
		if normalized == string(p) {
			return p, true
		}
	}
	if p, ok := Synonyms[normalized]; ok {
		return p, true
	}
	return Unrecognized, false
}
