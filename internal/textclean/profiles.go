package textclean

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

// LanguageProfile drives language detection and stop-word filtering for one
// language. Profiles are ranked: the first profile is the fallback when
// detection is inconclusive.
type LanguageProfile struct {
	Code       string   `yaml:"code"`
	Indicators []string `yaml:"indicators"`
	StopWords  []string `yaml:"stop_words"`
}

type profileFile struct {
	Profiles []LanguageProfile `yaml:"profiles"`
}

// LoadProfiles parses the embedded profile set.
func LoadProfiles() ([]LanguageProfile, error) {
	var f profileFile
	if err := yaml.Unmarshal(profilesYAML, &f); err != nil {
		return nil, fmt.Errorf("failed to parse language profiles: %w", err)
	}
	if len(f.Profiles) == 0 {
		return nil, fmt.Errorf("no language profiles defined")
	}
	return f.Profiles, nil
}
