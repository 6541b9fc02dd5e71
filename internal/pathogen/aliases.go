package pathogen

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/surveillance-tracker/constants"
)

// aliasFile is the YAML layout of PATHOGEN_ALIASES_FILE:
//
//	aliases:
//	  新型冠状病毒: [新冠, 新型冠壮病毒]
//	  肺炎支原体: [支原体肺炎]
type aliasFile struct {
	Aliases map[string][]string `yaml:"aliases"`
}

// LoadAliases reads extra aliases from a YAML file. Every key must be a canonical name.
func LoadAliases(path string) (map[string]constants.Pathogen, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read aliases file: %w", err)
	}
	return ParseAliases(data)
}

// ParseAliases decodes the aliases YAML document.
func ParseAliases(data []byte) (map[string]constants.Pathogen, error) {
	var f aliasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse aliases: %w", err)
	}

	out := make(map[string]constants.Pathogen)
	for name, variants := range f.Aliases {
		p := constants.Pathogen(name)
		if !constants.IsCanonical(p) {
			return nil, fmt.Errorf("aliases: %q is not a canonical pathogen", name)
		}
		for _, v := range variants {
			key := fold(v)
			if key == "" {
				continue
			}
			if prev, ok := out[key]; ok && prev != p {
				return nil, fmt.Errorf("aliases: %q maps to both %s and %s", v, prev, p)
			}
			out[key] = p
		}
	}
	return out, nil
}
