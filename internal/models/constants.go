package models

const (
	// ContextSeparator joins retrieved chunks into the extraction context block.
	ContextSeparator = "\n---\n"

	DefaultChunkSize    = 600
	DefaultChunkOverlap = 100
	DefaultHeaderHeight = 50
	DefaultFooterHeight = 50
	DefaultTopK         = 5
	MaxTopK             = 20

	MetaSource     = "source"
	MetaPageNumber = "page"
	MetaSequence   = "seq"
	MetaEmbedder   = "embedder"
)

var (
	ExtractionSystemPrompt = "You are a helpful assistant that extracts structured data."

	ExtractionPromptTemplate = `You are an automotive specification extraction assistant.

Extract structured vehicle specifications from the provided context.

Query:
%s

Context:
%s

Return JSON only:

[
  {
    "component": "",
    "spec_type": "",
    "value": "",
    "unit": "",
    "conditions": ""
  }
]

Rules:
- No hallucinations: only report values present in the context
- If not found return []
- Extract all specs
- Normalize units
- Separate multiple values into separate objects
`
)
