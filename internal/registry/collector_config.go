package registry

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// CollectorDocument is the structured Vector-compatible configuration
// emitted by collector_config() (spec.md §4.5): one source block per
// enabled source, an OCSF remap transform per source type, and a sink
// block pointing at this process's ingest address.
type CollectorDocument struct {
	Sources    map[string]interface{} `yaml:"sources"`
	Transforms map[string]interface{} `yaml:"transforms"`
	Sinks      map[string]interface{} `yaml:"sinks"`
}

// CollectorConfig builds the document from every enabled source, wiring
// each through a remap transform at "<remapsRoot>/<type>/remap.vrl" into a
// single sink pointed at ingestAddr.
func (r *SourceRegistry) CollectorConfig(remapsRoot, ingestAddr string) CollectorDocument {
	doc := CollectorDocument{
		Sources:    map[string]interface{}{},
		Transforms: map[string]interface{}{},
		Sinks:      map[string]interface{}{},
	}

	remapInputs := make([]string, 0)
	for _, s := range r.ListSources() {
		if !s.Enabled {
			continue
		}
		sourceKey := "source_" + s.ID
		transformKey := "remap_" + s.ID

		doc.Sources[sourceKey] = map[string]interface{}{
			"type":   s.Type,
			"config": s.Config,
		}
		doc.Transforms[transformKey] = map[string]interface{}{
			"type":   "remap",
			"inputs": []string{sourceKey},
			"file":   fmt.Sprintf("%s/%s/remap.vrl", remapsRoot, s.Type),
		}
		remapInputs = append(remapInputs, transformKey)
	}

	doc.Sinks["striem_ingest"] = map[string]interface{}{
		"type":    "grpc",
		"inputs":  remapInputs,
		"address": ingestAddr,
	}

	return doc
}

// MarshalYAML renders the document as the YAML text an operator hands to
// the upstream Vector process.
func (doc CollectorDocument) MarshalYAML() ([]byte, error) {
	return yaml.Marshal(doc)
}
