package driven

// PromptStore resolves summarisation templates by name.
type PromptStore interface {
	Load(name string) (string, error)
	// Reload drops cached templates so the next Load rereads them.
	Reload()
}

// Template names and their fmt verbs:
//
//	PromptSummarise             %[1]d target tokens, %[2]s passages
//	PromptSummariseWithContext  %[1]d target tokens, %[2]s running summary, %[3]s passage
const (
	PromptSummarise            = "summarise"
	PromptSummariseWithContext = "summarise_with_context"
)
