package keywords

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed wordlists.yaml
var wordlistsYAML []byte

// wordlists holds the curated fallback vocabularies.
type wordlists struct {
	Stopwords []string `yaml:"stopwords"`
	Colors    []string `yaml:"colors"`
	Sizes     []string `yaml:"sizes"`
}

var lists = mustLoadWordlists()

func mustLoadWordlists() wordlists {
	var w wordlists
	if err := yaml.Unmarshal(wordlistsYAML, &w); err != nil {
		panic("keywords: parse embedded wordlists: " + err.Error())
	}
	return w
}
