package knowledge

// DefaultIndexName names the index built from the default corpus.
const DefaultIndexName = "threatviz"

// DefaultPDF is the threat-modeling reference document. It is optional; a
// missing file is skipped at ingest time.
const DefaultPDF = "threat_models.pdf"

// DefaultURLs are the Mermaid syntax reference pages the diagram stages are
// grounded on.
var DefaultURLs = []string{
	"https://mermaid.js.org/intro/syntax-reference.html",
	"https://mermaid.js.org/syntax/sequenceDiagram.html",
	"https://mermaid.js.org/syntax/classDiagram.html",
	"https://mermaid.js.org/syntax/stateDiagram.html",
	"https://mermaid.js.org/syntax/entityRelationshipDiagram.html",
	"https://mermaid.js.org/syntax/pie.html",
	"https://mermaid.js.org/syntax/c4.html",
	"https://mermaid.js.org/syntax/architecture.html",
}

// CorpusSpec lists the operator-configured reference inputs.
type CorpusSpec struct {
	PDFFiles    []string `yaml:"pdf_files" mapstructure:"pdf_files"`
	URLs        []string `yaml:"urls" mapstructure:"urls"`
	JSONSources []Source `yaml:"json_sources" mapstructure:"json_sources"`
	Files       []string `yaml:"files" mapstructure:"files"`
}

// DefaultCorpusSpec returns the built-in reference inputs.
func DefaultCorpusSpec() CorpusSpec {
	return CorpusSpec{
		PDFFiles: []string{DefaultPDF},
		URLs:     append([]string(nil), DefaultURLs...),
	}
}

// Sources expands the corpus into ordered sources: PDFs, then web pages, then
// local files, then JSON record sets.
func (c CorpusSpec) Sources() []Source {
	var sources []Source
	for _, p := range c.PDFFiles {
		sources = append(sources, Source{Kind: SourcePDF, Location: p})
	}
	for _, u := range c.URLs {
		sources = append(sources, Source{Kind: SourceURL, Location: u})
	}
	for _, f := range c.Files {
		sources = append(sources, Source{Kind: SourceFile, Location: f})
	}
	for _, j := range c.JSONSources {
		j.Kind = SourceJSON
		sources = append(sources, j)
	}
	return sources
}
